package metrics

type Counter interface {
	Inc()
}

type Factory interface {
	CreateCounter(name string, description string) (Counter, error)

	Start() error

	Stop() error
}

// NewNoopFactory returns a Factory whose counters discard every increment, for callers that export no metrics.
func NewNoopFactory() Factory {
	return noopFactory{}
}

type noopFactory struct{}

func (noopFactory) CreateCounter(string, string) (Counter, error) {
	return noopCounter{}, nil
}

func (noopFactory) Start() error {
	return nil
}

func (noopFactory) Stop() error {
	return nil
}

type noopCounter struct{}

func (noopCounter) Inc() {}
