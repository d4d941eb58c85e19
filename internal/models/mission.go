package models

const (
	MinTargetsPerMission = 1
	MaxTargetsPerMission = 3
)

type Mission struct {
	Id         int64    `json:"id" db:"id"`
	CatId      *int64   `json:"cat_id" db:"cat_id"`
	IsComplete bool     `json:"is_complete" db:"is_complete"`
	Targets    []Target `json:"targets"`
}

func (m *Mission) SetCatId(id int64) {
	m.CatId = &id
}

func (m Mission) Assigned() bool {
	return m.CatId != nil
}

type NewMission struct {
	CatId      *int64      `json:"cat_id"`
	IsComplete bool        `json:"is_complete"`
	Targets    []NewTarget `json:"targets" binding:"required,min=1,max=3,dive"`
}

type MissionUpdate struct {
	IsComplete *bool  `json:"is_complete"`
	CatId      *int64 `json:"cat_id"`
}
