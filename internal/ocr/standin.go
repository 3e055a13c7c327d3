package ocr

import "context"

// sampleTranscript is a plausible TestDaF-style passage returned by the
// offline extractor so the full pipeline can run without a Vision key.
const sampleTranscript = "Die Grafik zeigt die Entwicklung der Studenten in Deutschland von 2010 bis 2020. " +
	"Man kann sehen, dass die Anzahl der Studenten kontinuierlich gestiegen ist."

// StandIn is a deterministic offline Extractor used when no Vision
// credentials are configured.
type StandIn struct{}

// NewStandIn creates the offline stand-in extractor.
func NewStandIn() *StandIn {
	return &StandIn{}
}

func (s *StandIn) ExtractText(_ context.Context, _ []byte, _ string) (string, error) {
	return sampleTranscript, nil
}
