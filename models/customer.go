package models

// Customer is an entry of the cached customer directory.
type Customer struct {
	ID    string `gorm:"primaryKey;size:64" json:"id"`
	Name  string `gorm:"not null" json:"name"`
	Phone string `gorm:"index" json:"phone"`
}

func (Customer) TableName() string { return "customers" }
