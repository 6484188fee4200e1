package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/numeric"
)

// Header field patterns. Each family lists a primary pattern first and
// progressively looser alternates; the first match wins.
var (
	billNumberRe = regexp.MustCompile(`N° doc:\s*(LV\s*/\s*\d+)`)
	billDateRe   = regexp.MustCompile(`Del:\s*(\d{2}-\d{2}-\d{4})`)

	// The currency and customer code labels print merged on some layouts.
	combinedDivisaRes = []*regexp.Regexp{
		regexp.MustCompile(`Divisa:\s*Cliente:\s*([A-Z]{3})\s+([A-Z0-9]+)`),
		regexp.MustCompile(`Divisa:\s*([A-Z]{3})\s*Cliente:\s*([A-Z0-9]+)`),
	}
	currencyRe      = regexp.MustCompile(`Divisa:\s*([A-Z]{3})`)
	customerCodeRes = []*regexp.Regexp{
		regexp.MustCompile(`Cliente:\s*(\w+)`),
		regexp.MustCompile(`Codice:\s*(\w+)`),
	}

	customerBlockRe = regexp.MustCompile(`(?is)P\.IVA UE:\s*(\S+).*?Spett\.le:\s*\n([^\n]+)\n(STR\.[^\n]+)\n(\d{6}\s+[A-Z]+)\n([A-Z]+)`)

	customerNameRe    = regexp.MustCompile(`Spett\.le:\s*\n([^\n]+)`)
	customerVATRe     = regexp.MustCompile(`P\.IVA UE:\s*(\S+)`)
	customerSectionRe = regexp.MustCompile(`(?s)Spett\.le:\s*\n([^\n]+)\n(.*?)LISTA VALORIZZATA`)
	streetRe          = regexp.MustCompile(`(STR\.[^\n]+)`)
	postalCityRe      = regexp.MustCompile(`(\d{6}\s+[A-Z]+)`)
	countryLineRe     = regexp.MustCompile(`(?m)^([A-Z]{2,}(?:\s+[A-Z]+)*)$`)
	countryLooseRe    = regexp.MustCompile(`\n([A-Z]{2,}(?:\s+[A-Z]+)*)\s*\n`)

	// Filename fallbacks; operational filenames encode totals and weights.
	fnTotalRe    = regexp.MustCompile(`([\d\.,]+)\s*€`)
	fnPackagesRe = regexp.MustCompile(`(\d+)\s*colli`)
	fnNetRe      = regexp.MustCompile(`\(([\d\.,]+)\s*Kg_N`)
	fnGrossRe    = regexp.MustCompile(`([\d\.,]+)\s*Kg_B\)`)
	fnBillNrRe   = regexp.MustCompile(`nr\.\s*(\d+)`)
)

// MetadataExtractor pulls the invoice header fields from the first page's
// text, with the upload filename as a last-resort source for totals and
// weights.
type MetadataExtractor struct{}

// NewMetadataExtractor returns a header metadata extractor.
func NewMetadataExtractor() *MetadataExtractor {
	return &MetadataExtractor{}
}

// Extract reads header metadata from the first page text. A blank page
// falls back entirely to the filename.
func (e *MetadataExtractor) Extract(firstPageText, filename string) domain.BillData {
	var bill domain.BillData

	if firstPageText == "" {
		e.fillFromFilename(filename, &bill)
		if bill.Currency == "" && strings.Contains(filename, "€") {
			bill.Currency = "EUR"
		}
		return bill
	}

	e.extractHeader(firstPageText, &bill)
	e.extractCustomer(firstPageText, &bill)
	fixCurrencyCodeSwap(&bill)
	e.fillFromFilename(filename, &bill)
	return bill
}

func (e *MetadataExtractor) extractHeader(pageText string, bill *domain.BillData) {
	if m := billNumberRe.FindStringSubmatch(pageText); m != nil {
		number := strings.ReplaceAll(m[1], " ", "")
		bill.BillNumber = strings.TrimPrefix(number, "LV/")
	}
	if m := billDateRe.FindStringSubmatch(pageText); m != nil {
		bill.BillDate = m[1]
	}

	for _, re := range combinedDivisaRes {
		if m := re.FindStringSubmatch(pageText); m != nil {
			bill.Currency = m[1]
			bill.CustomerCode = m[2]
			return
		}
	}

	if m := currencyRe.FindStringSubmatch(pageText); m != nil {
		bill.Currency = m[1]
	}
	for _, re := range customerCodeRes {
		m := re.FindStringSubmatch(pageText)
		// A match equal to the currency is the label pair bleeding together.
		if m != nil && m[1] != bill.Currency {
			bill.CustomerCode = m[1]
			break
		}
	}
}

func (e *MetadataExtractor) extractCustomer(pageText string, bill *domain.BillData) {
	if m := customerBlockRe.FindStringSubmatch(pageText); m != nil {
		bill.CustomerVATID = strings.TrimSpace(m[1])
		bill.CustomerName = strings.TrimSpace(m[2])
		bill.CustomerAddress = joinAddress(m[3], m[4], m[5])
		return
	}

	if m := customerNameRe.FindStringSubmatch(pageText); m != nil {
		bill.CustomerName = strings.TrimSpace(m[1])
	}
	if m := customerVATRe.FindStringSubmatch(pageText); m != nil {
		bill.CustomerVATID = strings.TrimSpace(m[1])
	}

	var street, postalCity, country string
	if m := customerSectionRe.FindStringSubmatch(pageText); m != nil {
		section := m[2]
		street = firstMatch(streetRe, section)
		postalCity = firstMatch(postalCityRe, section)
		country = firstMatch(countryLineRe, section)
	} else {
		street = firstMatch(streetRe, pageText)
		postalCity = firstMatch(postalCityRe, pageText)
		country = firstMatch(countryLooseRe, pageText)
	}
	bill.CustomerAddress = joinAddress(street, postalCity, country)
}

// fixCurrencyCodeSwap moves a currency code mistakenly captured as the
// customer code back where it belongs.
func fixCurrencyCodeSwap(bill *domain.BillData) {
	if bill.Currency == "" && bill.CustomerCode == "EUR" {
		bill.Currency = "EUR"
		bill.CustomerCode = ""
	}
}

func (e *MetadataExtractor) fillFromFilename(filename string, bill *domain.BillData) {
	if filename == "" {
		return
	}
	if !bill.TotalAmount.Valid {
		if m := fnTotalRe.FindStringSubmatch(filename); m != nil {
			bill.TotalAmount = numeric.ParseNullDecimal(m[1])
		}
	}
	if bill.PackageCount == 0 {
		if m := fnPackagesRe.FindStringSubmatch(filename); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				bill.PackageCount = n
			}
		}
	}
	if !bill.NetWeightKG.Valid {
		if m := fnNetRe.FindStringSubmatch(filename); m != nil {
			bill.NetWeightKG = numeric.ParseNullDecimal(m[1])
		}
	}
	if !bill.GrossWeightKG.Valid {
		if m := fnGrossRe.FindStringSubmatch(filename); m != nil {
			bill.GrossWeightKG = numeric.ParseNullDecimal(m[1])
		}
	}
	if bill.BillNumber == "" {
		if m := fnBillNrRe.FindStringSubmatch(filename); m != nil {
			bill.BillNumber = m[1]
		}
	}
}

func firstMatch(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func joinAddress(parts ...string) string {
	var clean []string
	for _, part := range parts {
		if v := numeric.CleanString(part); v != "" {
			clean = append(clean, v)
		}
	}
	return strings.Join(clean, ", ")
}
