package dto

type TokenRequest struct {
	AdminKey string `json:"admin_key" validate:"required"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}
