package models

type Target struct {
	Id         int64   `json:"id" db:"id"`
	MissionId  int64   `json:"-" db:"mission_id"`
	Name       string  `json:"name" db:"name"`
	Country    string  `json:"country" db:"country"`
	Notes      *string `json:"notes" db:"notes"`
	IsComplete bool    `json:"is_complete" db:"is_complete"`
}

type NewTarget struct {
	Name       string  `json:"name" binding:"required,min=1,max=255"`
	Country    string  `json:"country" binding:"required,min=1,max=255"`
	Notes      *string `json:"notes"`
	IsComplete bool    `json:"is_complete"`
}

func (n NewTarget) ToTarget(missionId int64) Target {
	return Target{
		MissionId:  missionId,
		Name:       n.Name,
		Country:    n.Country,
		Notes:      n.Notes,
		IsComplete: n.IsComplete,
	}
}

// TargetUpdate changes notes and/or the completion flag. Nil fields are left as is.
type TargetUpdate struct {
	Notes      *string `json:"notes"`
	IsComplete *bool   `json:"is_complete"`
}
