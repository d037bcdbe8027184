package bootstrap

import (
	"log"

	"github.com/openshelf/openshelf/internal/model"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Post{},
		&model.PostVote{},
		&model.Comment{},
		&model.Report{},
		&model.LinkReport{},
		&model.PostSuggestion{},
		&model.SuggestionVote{},
		&model.Notification{},
	)
}

// EnsureBootstrapModerator promotes the configured handle to a full
// moderator. Idempotent; registration handles the first-user case, this
// covers existing databases where the handle was configured later.
func EnsureBootstrapModerator(db *gorm.DB, handle string) error {
	if handle == "" {
		return nil
	}

	var user model.User
	err := db.Where("username = ?", handle).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			log.Printf("bootstrap moderator %q not registered yet, skipping", handle)
			return nil
		}
		return err
	}

	if user.IsMod && user.Capabilities == model.FullCapabilities() {
		return nil
	}

	user.IsMod = true
	user.Capabilities = model.FullCapabilities()
	if err := db.Save(&user).Error; err != nil {
		return err
	}

	log.Printf("bootstrap moderator %q promoted", handle)
	return nil
}
