package seed

// File is the top-level structure of a seed file: a list of region groups,
// each holding a list of single-key maps from listing name to its properties.
//
//	# seed.yaml
//	- Finland:
//	    - Acme AI:
//	        href: acme.ai
//	        description: Chat assistant
//	        useCase: Chatbot, CRM
type File []map[string][]map[string]Entry

// Entry holds the properties of one seeded listing.
type Entry struct {
	Href         string `yaml:"href"`
	Icon         string `yaml:"icon,omitempty"`
	Description  string `yaml:"description"`
	UseCase      string `yaml:"useCase"`
	AddedBy      string `yaml:"addedBy,omitempty"`
	AddedByEmail string `yaml:"addedByEmail,omitempty"`
	// Active defaults to true: seed files are curated by the operator.
	Active *bool `yaml:"active,omitempty"`
}
