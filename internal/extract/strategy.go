// Package extract turns page layouts into product records, delivery notes
// and invoice header metadata. Table extraction is strategy-based: each
// strategy knows one table shape and either claims the page or passes.
package extract

import (
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/layout"
)

// Strategy attempts to extract product records from one page. ok=false
// means the strategy could not find a table shape it understands; the
// chain then moves on to the next strategy.
type Strategy interface {
	Name() string
	Attempt(page layout.Page) ([]domain.ProductRecord, bool)
}

// Chain tries strategies in priority order and returns the first
// successful result. First match wins; later strategies never run.
type Chain struct {
	strategies []Strategy
}

// NewChain builds a chain from strategies in priority order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Attempt runs the chain. The returned name identifies the strategy that
// produced the records; ok=false means every strategy passed.
func (c *Chain) Attempt(page layout.Page) (records []domain.ProductRecord, name string, ok bool) {
	for _, s := range c.strategies {
		if recs, match := s.Attempt(page); match {
			return recs, s.Name(), true
		}
	}
	return nil, "", false
}

// ChainFor maps an extraction flavor to its strategy chain.
func ChainFor(flavor domain.ExtractionFlavor, cfg domain.ProcessingConfig) *Chain {
	switch flavor {
	case domain.FlavorStructured:
		return NewChain(NewStructuredStrategy())
	case domain.FlavorFlexible:
		return NewChain(NewFlexibleStrategy())
	case domain.FlavorCoordinate:
		return NewChain(NewCoordinateStrategy(cfg.CoordinateStartMarker, cfg.CoordinateEndMarker))
	default:
		return NewChain(NewStructuredStrategy(), NewFlexibleStrategy())
	}
}
