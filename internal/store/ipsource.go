package store

import (
	"github.com/John-Robertt/subforge/internal/ipcsv"
	"github.com/John-Robertt/subforge/internal/model"
	"go.uber.org/zap"
)

// IPSource loads IP pools from CSV blobs. Only valid records are returned;
// rejected lines are logged and dropped.
type IPSource struct {
	Store  TextStore
	Logger *zap.Logger
}

func (s *IPSource) LoadDefaultIPs() ([]model.IPRecord, error) {
	return s.load(KeyDefaultIPs)
}

func (s *IPSource) LoadDedicatedIPs(userID string) ([]model.IPRecord, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	return s.load(KeyUserIPs(userID))
}

func (s *IPSource) load(key string) ([]model.IPRecord, error) {
	text, ok, err := s.Store.Load(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	res := ipcsv.Parse(text)
	if len(res.Rejected) > 0 && s.Logger != nil {
		s.Logger.Warn("dropped invalid IP records",
			zap.String("key", key),
			zap.Int("rejected", len(res.Rejected)),
			zap.Int("accepted", len(res.Records)))
	}
	return res.Records, nil
}
