package models

import "gorm.io/gorm"

func AutoMigrateAll(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&Admin{},
		&AdminActiveChat{},
		&Employee{},
		&Message{},
		&Notification{},
	)
	if err != nil {
		return err
	}
	return nil
}
