package models

// ChatMessage is one turn of the chatbot conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// Place is a geocoding result
type Place struct {
	DisplayName string   `json:"displayName"`
	PlaceName   string   `json:"placeName,omitempty"`
	PlaceType   string   `json:"placeType,omitempty"`
	Point       GeoPoint `json:"point"`
}
