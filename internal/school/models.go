// Package school holds the console's view of the upstream API's entities.
// Field names follow the upstream JSON contract exactly.
package school

// School is an institution, with its branch sites (sedes).
type School struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	ImgURL       string `json:"imgUrl"`
	Department   string `json:"department"`
	Municipality string `json:"municipality"`
	Mail         string `json:"mail"`
	Website      string `json:"website"`
	Sedes        []Sede `json:"sedes"`
}

// Sede is a branch site of a school.
type Sede struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	Phone    string   `json:"phone"`
	Type     string   `json:"type"`
	Capacity int      `json:"capacity"`
	Levels   []string `json:"levels"`
}

// User is a registered platform user, scoped to one or more schools.
type User struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	Role            string   `json:"role"`
	IsEmailVerified bool     `json:"isEmailVerified"`
	Activate        bool     `json:"activate"`
	Schools         []School `json:"schools"`
}

// SchoolData wraps a school in list responses.
type SchoolData struct {
	School School `json:"school"`
}

// SchoolWithUsers pairs a school with its registered users.
type SchoolWithUsers struct {
	School School `json:"school"`
	Users  []User `json:"users"`
}

// Metadata is the upstream's pagination envelope.
type Metadata struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// PaginatedSchools is the /schools list response.
type PaginatedSchools struct {
	Schools  []SchoolData `json:"schools"`
	Metadata Metadata     `json:"metadata"`
}

// PaginatedSchoolUsers is the /auth/view-registered response.
type PaginatedSchoolUsers struct {
	Schools  []SchoolWithUsers `json:"schools"`
	Metadata Metadata          `json:"metadata"`
}
