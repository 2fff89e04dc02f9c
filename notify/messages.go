package notify

import "strings"

// Callback data understood by the chat front end.
const (
	ActionCreateVideo = "create_video"
	ActionMainMenu    = "main_menu"
)

// Messages holds the user-facing texts. LinkTemplate must contain the
// {url} token.
type Messages struct {
	DoneCaption  string
	LinkTemplate string
	Failed       string

	ShareButton string
	AgainButton string
	RetryButton string
	MenuButton  string
}

// DefaultMessages returns the stock Russian texts.
func DefaultMessages() Messages {
	return Messages{
		DoneCaption: "✅ Ваше видео готово!\n\n🎬 Генерация успешно завершена!\n\n" +
			"⚠️ ВАЖНО: Сохраните видео прямо сейчас!",
		LinkTemplate: "✅ Ваше видео готово!\n\n🎬 Генерация успешно завершена!\n\n" +
			"🔗 Ссылка на видео: {url}\n\n⚠️ ВАЖНО: Сохраните видео прямо сейчас!",
		Failed: "😔 К сожалению, не удалось создать видео.\n\n" +
			"Генерация не списана с вашего баланса. Попробуйте ещё раз.",
		ShareButton: "👥 Поделиться с другом",
		AgainButton: "🎬 Сгенерировать еще",
		RetryButton: "🔄 Попробовать снова",
		MenuButton:  "🏠 Главное меню",
	}
}

func (m Messages) link(url string) string {
	return strings.ReplaceAll(m.LinkTemplate, "{url}", url)
}

// doneKeyboard offers sharing the job by id, another render and the menu.
func (m Messages) doneKeyboard(jobID string) Keyboard {
	return Keyboard{
		{{Text: m.ShareButton, SwitchInline: jobID}},
		{{Text: m.AgainButton, Callback: ActionCreateVideo}},
		{{Text: m.MenuButton, Callback: ActionMainMenu}},
	}
}

func (m Messages) failedKeyboard() Keyboard {
	return Keyboard{
		{{Text: m.RetryButton, Callback: ActionCreateVideo}},
		{{Text: m.MenuButton, Callback: ActionMainMenu}},
	}
}
