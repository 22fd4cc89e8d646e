package dto

type VerifyRequest struct {
	Code string `json:"code"`
}

type ReverifyRequest struct {
	Email string `json:"email"`
}

type RestoreRequest struct {
	Email string `json:"email"`
}

type RestoreChangeRequest struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}
