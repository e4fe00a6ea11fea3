package enum

import "fmt"

type Tier int

const (
	Free Tier = iota
	Pro
)

func (t Tier) String() string {
	return [...]string{"free", "pro"}[t]
}

func ParseTier(value string) (Tier, error) {
	switch value {
	case "free":
		return Free, nil
	case "pro":
		return Pro, nil
	default:
		return Free, fmt.Errorf("unknown tier %q", value)
	}
}

// Backend selects where counters live.
type Backend int

const (
	Memory Backend = iota
	Redis
	Postgres
)

func (b Backend) String() string {
	return [...]string{"memory", "redis", "postgres"}[b]
}

func ParseBackend(value string) (Backend, error) {
	switch value {
	case "memory":
		return Memory, nil
	case "redis":
		return Redis, nil
	case "postgres":
		return Postgres, nil
	default:
		return Memory, fmt.Errorf("unknown backend %q", value)
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
