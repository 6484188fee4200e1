package extract

import (
	"regexp"
	"strings"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
)

// Delivery note patterns. DDT references are only trusted when anchored to
// the "DDT interno" label, otherwise order numbers match the same shape.
var (
	ddtContextRes = []*regexp.Regexp{
		regexp.MustCompile(`DDT interno\s+([A-Z0-9]{9})\s+(\d{4})`),
		regexp.MustCompile(`DDT interno\s+([A-Z0-9]{8,10})\s+(\d{3,5})`),
	}
	ddtDateRe   = regexp.MustCompile(`Del:\s*(\d{2}-\d{2}-\d{4})`)
	ddtReasonRe = regexp.MustCompile(`Causale\s*\n\s*([A-Z]{3})`)

	modelOrderRes = []*regexp.Regexp{
		regexp.MustCompile(`([A-Z0-9.]+)\s*/\s*([A-Z0-9]{9})\s+(\d+)`),
		regexp.MustCompile(`([A-Z0-9.]+)\s+([A-Z0-9]{9})\s+(\d+)`),
		regexp.MustCompile(`([A-Z0-9.]+)\s*/\s*([A-Z0-9]+)\s+(\d+)`),
	}
	propertiesRe  = regexp.MustCompile(`Tessuto:\s*([^\n]+)`)
	productNameRe = regexp.MustCompile(`Tessuto:[^\n]+\n\s*([A-Z]+)\n\s*([A-Z]+)`)
)

// Context window around a DDT reference: dates and reasons print shortly
// before it, product details within the section that follows.
const (
	ddtContextBefore = 200
	ddtContextAfter  = 1500
)

// ExtractDeliveries scans a page's raw text for every delivery note
// section and pulls the fields printed around each DDT reference.
// Duplicate references to the same note collapse to one entry.
func ExtractDeliveries(pageText string) []domain.DeliveryData {
	if pageText == "" {
		return nil
	}

	type ddtRef struct {
		series   string
		number   string
		position int
	}
	var refs []ddtRef
	for _, re := range ddtContextRes {
		for _, m := range re.FindAllStringSubmatchIndex(pageText, -1) {
			refs = append(refs, ddtRef{
				series:   pageText[m[2]:m[3]],
				number:   pageText[m[4]:m[5]],
				position: m[0],
			})
		}
	}

	var deliveries []domain.DeliveryData
	seen := make(map[string]bool)
	for _, ref := range refs {
		delivery := deliveryFromContext(pageText, ref.series, ref.number, ref.position)
		if seen[delivery.Key()] {
			continue
		}
		seen[delivery.Key()] = true
		deliveries = append(deliveries, delivery)
	}
	return deliveries
}

// deliveryFromContext fills delivery fields from the text surrounding a
// DDT reference. Product details are only read after the reference so two
// adjacent sections cannot contaminate each other.
func deliveryFromContext(pageText, series, number string, position int) domain.DeliveryData {
	start := position - ddtContextBefore
	if start < 0 {
		start = 0
	}
	end := position + ddtContextAfter
	if end > len(pageText) {
		end = len(pageText)
	}
	context := pageText[start:end]
	afterDDT := pageText[position:end]

	delivery := domain.DeliveryData{
		DDTSeries: series,
		DDTNumber: number,
	}
	if m := ddtDateRe.FindStringSubmatch(context); m != nil {
		delivery.DDTDate = m[1]
	}
	if m := ddtReasonRe.FindStringSubmatch(context); m != nil {
		delivery.DDTReason = m[1]
	}
	FillDeliveryDetails(&delivery, afterDDT)
	return delivery
}

// FillDeliveryDetails reads model, order and product fields from a text
// section, filling only fields still empty. Also used for cross-page
// completion of a truncated section.
func FillDeliveryDetails(delivery *domain.DeliveryData, text string) {
	if delivery.ModelNumber == "" {
		for _, re := range modelOrderRes {
			if m := re.FindStringSubmatch(text); m != nil {
				delivery.ModelNumber = strings.TrimSpace(m[1])
				delivery.OrderSeries = strings.TrimSpace(m[2])
				delivery.OrderNumber = strings.TrimSpace(m[3])
				break
			}
		}
	}
	if delivery.ProductProperties == "" {
		if m := propertiesRe.FindStringSubmatch(text); m != nil {
			delivery.ProductProperties = strings.TrimSpace(m[1])
		}
	}
	if delivery.ProductName == "" {
		if m := productNameRe.FindStringSubmatch(text); m != nil {
			delivery.ProductName = strings.TrimSpace(m[1])
			delivery.ModelName = strings.TrimSpace(m[2])
		}
	}
}

// AssociateProducts distributes a page's products across its deliveries by
// document order: each product belongs to the closest delivery reference
// printed before it. With a single delivery all products go to it.
func AssociateProducts(page *domain.PageData) {
	if len(page.Deliveries) == 0 || len(page.Products) == 0 {
		return
	}
	for i := range page.Deliveries {
		page.Deliveries[i].Products = nil
	}

	if len(page.Deliveries) == 1 {
		page.Deliveries[0].Products = append([]domain.ProductRecord(nil), page.Products...)
		return
	}

	deliveryPositions := deliveryTextPositions(page.RawText, page.Deliveries)
	for _, product := range page.Products {
		productPos := productTextPosition(page.RawText, product)
		idx := closestPrecedingDelivery(productPos, deliveryPositions)
		if idx < 0 {
			idx = 0
		}
		page.Deliveries[idx].Products = append(page.Deliveries[idx].Products, product)
	}
}

func deliveryTextPositions(pageText string, deliveries []domain.DeliveryData) []int {
	positions := make([]int, len(deliveries))
	for i, delivery := range deliveries {
		re := regexp.MustCompile(regexp.QuoteMeta(delivery.DDTSeries) + `\s+` + regexp.QuoteMeta(delivery.DDTNumber))
		if loc := re.FindStringIndex(pageText); loc != nil {
			positions[i] = loc[0]
			continue
		}
		numberRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(delivery.DDTNumber) + `\b`)
		if loc := numberRe.FindStringIndex(pageText); loc != nil {
			positions[i] = loc[0]
			continue
		}
		positions[i] = 0
	}
	return positions
}

func productTextPosition(pageText string, product domain.ProductRecord) int {
	if product.ProductCode != "" {
		if idx := strings.Index(pageText, product.ProductCode); idx >= 0 {
			return idx
		}
	}
	// Unlocatable products sort after every delivery reference.
	return len(pageText)
}

func closestPrecedingDelivery(productPos int, deliveryPositions []int) int {
	best := -1
	bestDistance := -1
	for i, pos := range deliveryPositions {
		if pos > productPos {
			continue
		}
		distance := productPos - pos
		if best < 0 || distance < bestDistance {
			best = i
			bestDistance = distance
		}
	}
	return best
}
