package emailsvc

import (
	"context"
	"net/mail"

	"github.com/trezcool/ilmlab/core"
	"github.com/trezcool/ilmlab/core/progress"
)

const achievementTemplate = "achievement_unlocked"

// AchievementNotifier mails users about the achievements they unlock.
type AchievementNotifier struct {
	mailSvc core.EmailService
}

var _ progress.Notifier = (*AchievementNotifier)(nil)

func NewAchievementNotifier(mailSvc core.EmailService) *AchievementNotifier {
	return &AchievementNotifier{mailSvc: mailSvc}
}

type achievementMailData struct {
	Name        string
	Title       string
	Description string
	Icon        string
	Bonus       float64
	XP          float64
}

func (n *AchievementNotifier) AchievementUnlocked(_ context.Context, rec progress.UserRecord, ach progress.Achievement) {
	if rec.Email == "" {
		return
	}
	name := rec.DisplayName
	if name == "" {
		name = "there"
	}
	n.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: rec.DisplayName, Address: rec.Email}},
		Subject:      "Achievement unlocked: " + ach.Title,
		TemplateName: achievementTemplate,
		TemplateData: achievementMailData{
			Name:        name,
			Title:       ach.Title,
			Description: ach.Description,
			Icon:        ach.Icon,
			Bonus:       ach.XPBonus,
			XP:          float64(rec.XP.OrZero()),
		},
	})
}
