package models

// DrugInfo is descriptive metadata from the external drug registry.
// None of it is stored; only the name and a warning flag reach the catalog.
type DrugInfo struct {
	Seq          string `json:"item_seq"`
	Name         string `json:"item_name"`
	Manufacturer string `json:"manufacturer"`
	Efficacy     string `json:"efficacy"`
	Usage        string `json:"usage"`
	Warnings     string `json:"warnings"`
	PackUnit     string `json:"pack_unit,omitempty"`
}
