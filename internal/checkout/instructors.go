package checkout

// Instructor is shown next to the order summary. Display only.
type Instructor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var instructors = map[string]string{
	"igor":      "Igor Nagorski",
	"maksim":    "Maksim Fedorenko",
	"stanislav": "Stanislav Zigadlo",
	"ivan":      "Ivan Skorobogatov",
	"andrei":    "Andrei Naan",
}

// LookupInstructor returns false for empty or unknown ids.
func LookupInstructor(id string) (Instructor, bool) {
	name, ok := instructors[id]
	if !ok {
		return Instructor{}, false
	}
	return Instructor{ID: id, Name: name}, true
}
