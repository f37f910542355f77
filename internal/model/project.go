package model

type Project struct {
	ID          int64   `json:"id"`
	Name        string  `json:"nombre"`
	OwnerID     int64   `json:"owner_id"`
	Description *string `json:"description,omitempty"`
}

type NewProject struct {
	Name        string  `json:"nombre"`
	Description *string `json:"description,omitempty"`
}

type UserProfile struct {
	ID        int64   `json:"id"`
	Email     string  `json:"email"`
	FullName  *string `json:"nombre_completo"`
	AvatarURL *string `json:"avatar_url"`
	Bio       *string `json:"bio"`
	CreatedAt string  `json:"fecha_creacion"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
