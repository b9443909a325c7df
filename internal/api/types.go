package api

// createRequest is the body of POST /post. ImageURL, when present, carries an
// inline base64 data URI to be admitted, not a URL.
type createRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl"`
}

// messageResponse is a generic JSON confirmation body.
type messageResponse struct {
	Message string `json:"message"`
}

// deleteResponse is the payload for DELETE /delete/{id}.
type deleteResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
