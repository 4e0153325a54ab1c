package models

// Category groups listings. The slug is the id stored on listings.
type Category struct {
	ID   string `bson:"_id" json:"id"`
	Name string `bson:"name" json:"name"`
	Icon string `bson:"icon" json:"icon"`
}

// DefaultCategories is served when no categories are stored.
var DefaultCategories = []Category{
	{ID: "electronics", Name: "Electronics", Icon: "💻"},
	{ID: "tools-equipment", Name: "Tools", Icon: "🔧"},
	{ID: "outdoor-sports", Name: "Outdoor", Icon: "⛺"},
	{ID: "vehicles-transport", Name: "Vehicles", Icon: "🚗"},
	{ID: "home-garden", Name: "Home", Icon: "🏠"},
	{ID: "party-events", Name: "Party", Icon: "🎉"},
	{ID: "photography-video", Name: "Photo/Video", Icon: "📷"},
	{ID: "music", Name: "Music", Icon: "🎵"},
}

// IsDefaultCategory reports whether slug names one of DefaultCategories.
func IsDefaultCategory(slug string) bool {
	for _, c := range DefaultCategories {
		if c.ID == slug {
			return true
		}
	}
	return false
}
