package importer

import (
	"io"

	"github.com/talkcents/talkcents/internal/export"
	"github.com/talkcents/talkcents/internal/model"
)

// TalkcentsParser reads files written by `talkcents export`.
type TalkcentsParser struct{}

func (p *TalkcentsParser) Format() string { return "talkcents" }

// Parse reads exported rows. Local ids are dropped so the backend
// assigns fresh ones.
func (p *TalkcentsParser) Parse(r io.Reader) ([]model.Draft, error) {
	drafts, err := export.ReadDrafts(r)
	if err != nil {
		return nil, err
	}
	for i := range drafts {
		drafts[i].LocalID = ""
		drafts[i].Status = ""
	}
	return drafts, nil
}
