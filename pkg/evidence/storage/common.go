package storage

import (
	"encoding/json"
	"fmt"

	"mercator-hq/warden/pkg/evidence"
)

func errDuplicate(id string) error {
	return fmt.Errorf("record %s already exists", id)
}

// checkResolution accepts only final statuses.
func checkResolution(res evidence.Resolution) error {
	switch res.Status {
	case evidence.EscalationApproved, evidence.EscalationRejected:
		return nil
	}
	return fmt.Errorf("%w: %q", evidence.ErrInvalidStatus, res.Status)
}

func encodeContext(ctx map[string]any) (string, error) {
	if len(ctx) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(ctx)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeContext(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var ctx map[string]any
	if err := json.Unmarshal(raw, &ctx); err != nil || len(ctx) == 0 {
		return nil
	}
	return ctx
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
