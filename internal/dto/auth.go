package dto

type AuthRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	Password        string `json:"password"`
}

type ProfileUpdateRequest struct {
	Name    string `json:"name,omitempty"`
	Surname string `json:"surname,omitempty"`
}
