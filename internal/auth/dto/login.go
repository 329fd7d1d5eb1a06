package dto

type LoginInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
	IPAddress  string `json:"-"`
	UserAgent  string `json:"-"`
}
