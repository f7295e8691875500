package model

// AnswerRequest is the payload for selecting an option on the current question.
type AnswerRequest struct {
	Option string `json:"option" binding:"required,max=1000"`
}

// GoToRequest is the payload for jumping to a question from the picker strip.
type GoToRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}
