package extract

import (
	"context"
	"time"

	"github.com/spherical/pdf-fidelity/internal/aggregate"
	"github.com/spherical/pdf-fidelity/internal/domain"
)

// Producer names
const (
	CandidateProducer = "candidate"
	ReferenceProducer = "reference"
)

// Producer runs extraction and aggregation for one document
type Producer struct {
	name       string
	service    *Service
	aggregator *aggregate.Aggregator
	events     chan<- domain.StreamEvent
}

// NewProducer wraps a service and aggregator under a name
func NewProducer(name string, service *Service, aggregator *aggregate.Aggregator) *Producer {
	return &Producer{name: name, service: service, aggregator: aggregator}
}

// WithEvents returns a copy of the producer that streams progress to ch
func (p *Producer) WithEvents(ch chan<- domain.StreamEvent) *Producer {
	cp := *p
	cp.events = ch
	return &cp
}

func (p *Producer) Name() string {
	return p.name
}

// Produce extracts doc and aggregates the page results
func (p *Producer) Produce(ctx context.Context, doc domain.Document) (*domain.DocumentArtifacts, error) {
	start := time.Now()

	ext, err := p.service.Extract(ctx, doc.Path, p.events)
	if err != nil {
		return nil, err
	}

	arts, err := p.aggregator.Build(doc.ID, ext.PageCount, ext.Results)
	if err != nil {
		return nil, err
	}

	arts.Engine = p.service.Engine().Identity()
	arts.Producer = p.name
	arts.Workers = p.service.Workers()
	arts.ProcessingTime = time.Since(start)
	return arts, nil
}
