package models

type Cat struct {
	Id                int64   `json:"id" db:"id"`
	Name              string  `json:"name" db:"name"`
	YearsOfExperience int     `json:"years_of_experience" db:"years_of_experience"`
	Breed             string  `json:"breed" db:"breed"`
	Salary            float64 `json:"salary" db:"salary"`
}

// NewCat is the create payload. The numeric fields are pointers so that a
// missing value is told apart from an explicit zero.
type NewCat struct {
	Name              string   `json:"name" binding:"required,min=1,max=255"`
	YearsOfExperience *int     `json:"years_of_experience" binding:"required,gte=0"`
	Breed             string   `json:"breed" binding:"required,max=255"`
	Salary            *float64 `json:"salary" binding:"required,gte=0"`
}

// ToCat expects a payload that passed binding.
func (n NewCat) ToCat() Cat {
	cat := Cat{Name: n.Name, Breed: n.Breed}
	if n.YearsOfExperience != nil {
		cat.YearsOfExperience = *n.YearsOfExperience
	}
	if n.Salary != nil {
		cat.Salary = *n.Salary
	}
	return cat
}

// CatUpdate carries the only mutable cat field. A nil salary leaves it unchanged.
type CatUpdate struct {
	Salary *float64 `json:"salary" binding:"omitempty,gte=0"`
}
