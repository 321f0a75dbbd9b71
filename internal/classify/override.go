package classify

import (
	"fmt"
	"time"
)

// Override returns a copy of c with the case type replaced by a human
// decision. Signals and confidence are kept as evidence of what the engine
// originally saw.
func Override(c Classification, newType CaseType, reason string) (Classification, error) {
	return overrideAt(c, newType, reason, time.Now().UTC())
}

func overrideAt(c Classification, newType CaseType, reason string, at time.Time) (Classification, error) {
	if _, err := ParseCaseType(string(newType)); err != nil {
		return Classification{}, err
	}
	if newType == TypeMixed {
		return Classification{}, fmt.Errorf("override to %s needs a secondary type; classify again instead", TypeMixed)
	}
	out := c
	out.Signals = append([]string(nil), c.Signals...)
	out.Scores = make(map[CaseType]float64, len(c.Scores))
	for k, v := range c.Scores {
		out.Scores[k] = v
	}
	out.PrimaryType = newType
	out.SecondaryType = nil
	out.Routing = RouteFor(newType, nil)
	out.Override = &OverrideAudit{From: c.PrimaryType, To: newType, Reason: reason, At: at}
	return out, nil
}
