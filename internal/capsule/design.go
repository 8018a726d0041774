package capsule

// DefaultDesign is the unset sentinel a new draft starts with.
// It is not a catalog entry and never passes validation.
const DefaultDesign = "default"

// Design describes one of the capsule presentation styles.
type Design struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var catalog = []Design{
	{ID: "heritage", Name: "Heritage Album", Description: "A vintage photo album with golden accents for family memories and traditions"},
	{ID: "chronicle", Name: "Digital Chronicle", Description: "Futuristic interface with glowing elements and a high-tech aesthetic"},
	{ID: "legacy", Name: "Romantic Journal", Description: "Ornate vintage journal with elegant decorations and flourishes"},
	{ID: "vault", Name: "Crystal Vault", Description: "Geometric crystalline structure with facets that reflect your memories"},
}

// Designs returns the design catalog in display order.
func Designs() []Design {
	out := make([]Design, len(catalog))
	copy(out, catalog)
	return out
}

// LookupDesign returns the catalog entry for id.
func LookupDesign(id string) (Design, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Design{}, false
}
