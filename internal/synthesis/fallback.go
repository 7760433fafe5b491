package synthesis

import "github.com/kalambet/juskvi/internal/fault"

// Fallback values substituted for a collaborator's output.
const (
	Offline   = "Offline"
	NewsError = "News Error"
)

// The degradation policy. Adapters report what went wrong; only these
// functions decide what the caller sees instead.
//
//	collaborator  unconfigured  failed
//	news          ""            NewsError
//	memory        ""            ""
//	agent         Offline       the provider's error text

func newsOrFallback(digest string, err error) string {
	if err == nil {
		return digest
	}
	if fault.KindOf(err) == fault.KindUnconfigured {
		return ""
	}
	return NewsError
}

func memoryOrFallback(digest string, err error) string {
	if err != nil {
		return ""
	}
	return digest
}

// agentOrFallback passes a failed call's error text through as the field
// value so operators can see why a persona failed.
func agentOrFallback(text string, err error) string {
	if err == nil {
		return text
	}
	if fault.KindOf(err) == fault.KindUnconfigured {
		return Offline
	}
	return err.Error()
}
