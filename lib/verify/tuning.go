package verify

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/UniAttendHQ/uniattend"
)

// Tuning is the deployment-specific knob file for the verification core.
// Durations are expressed in whole seconds to match how operators reason
// about them.
type Tuning struct {
	Classifier Classifier `yaml:"classifier"`

	// SessionDeadlineSeconds bounds the collecting phase of one session.
	SessionDeadlineSeconds int `yaml:"session_deadline_seconds"`

	// ChallengeTTLSeconds is how long an issued challenge stays takeable.
	ChallengeTTLSeconds int `yaml:"challenge_ttl_seconds"`
}

func (t Tuning) SessionDeadline() time.Duration {
	if t.SessionDeadlineSeconds > 0 {
		return time.Duration(t.SessionDeadlineSeconds) * time.Second
	}
	return uniattend.DefaultSessionDeadline
}

func (t Tuning) ChallengeTTL() time.Duration {
	if t.ChallengeTTLSeconds > 0 {
		return time.Duration(t.ChallengeTTLSeconds) * time.Second
	}
	return uniattend.DefaultChallengeTTL
}

// LoadTuning reads a tuning file. An empty fname returns the zero Tuning,
// which resolves every knob to its default.
func LoadTuning(fname string) (Tuning, error) {
	var result Tuning

	if fname == "" {
		return result, nil
	}

	data, err := os.ReadFile(fname)
	if err != nil {
		return result, fmt.Errorf("verify: can't read tuning file %s: %w", fname, err)
	}

	if err := yaml.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("verify: can't parse tuning file %s: %w", fname, err)
	}

	return result, nil
}
