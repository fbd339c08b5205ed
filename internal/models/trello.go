package models

// TrelloCard is the subset of Trello's card resource returned when an
// action is exported to a board list.
type TrelloCard struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Due       string `json:"due"`
	ShortLink string `json:"shortLink"`
	ShortURL  string `json:"shortUrl"`
	IDList    string `json:"idList"`
	Closed    bool   `json:"closed"`
}
