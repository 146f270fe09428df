package reference

// Dictionary — справочник значений для option-свойств.
type Dictionary struct {
	Code  string `yaml:"code" json:"code"`
	Name  string `yaml:"name" json:"name"`
	Items []Item `yaml:"items" json:"items"`
}

type Item struct {
	Code  string `yaml:"code" json:"code"`
	Name  string `yaml:"name" json:"name"`
	Order int    `yaml:"order,omitempty" json:"order,omitempty"`
	// Archived — значение не предлагается для новых записей, но остаётся валидным.
	Archived bool `yaml:"archived,omitempty" json:"archived,omitempty"`
}

// Has reports whether the dictionary contains the item code.
func (d Dictionary) Has(code string) bool {
	for _, it := range d.Items {
		if it.Code == code {
			return true
		}
	}
	return false
}
