package environments

import "strings"

type Environment string

const (
	Production  Environment = "production"
	Development Environment = "development"
	Staging     Environment = "staging"
	Test        Environment = "test"
)

// Parse maps APP_ENV values (including the short "prod" alias) to an Environment.
// Unknown values are returned as-is so the logger falls back to production settings.
func Parse(value string) Environment {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "dev", string(Development):
		return Development
	case "prod", string(Production):
		return Production
	case string(Staging):
		return Staging
	case string(Test):
		return Test
	default:
		return Environment(value)
	}
}

func (e Environment) IsProduction() bool {
	return e == Production
}
