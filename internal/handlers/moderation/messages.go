package moderation

import (
	"fmt"
	"html"
)

// Callback payloads are colon-delimited, the first segment being the verb.
const (
	unmuteCallback = "UNMUTE_BUTTON"
)

const (
	msgAdminsOnly      = "Эта команда доступна только администраторам"
	msgReplyRequired   = "Команда должна быть ответом на сообщение"
	msgAlreadyBanned   = "Пользователь уже забанен"
	msgCantBanAdmin    = "Не могу забанить администратора"
	msgCantMuteAdmin   = "Не могу обеззвучить администратора"
	msgAdminsRefreshed = "Список администраторов обновлен"
	msgBanned          = "уничтожен"
	msgWarned          = "предупрежден. Количество предупреждений: %d из %d"
	msgWarnCount       = "Количество предупреждений: %d из %d"
	msgWarnsReset      = "Количество предупреждений сброшено"
	msgMuted           = "обеззвучен на сутки"
	msgUnmuted         = "снова может писать сообщения"
	msgUnmuteButton    = "Снять ограничения"
	msgFarewell        = "Всего хорошего"
	msgKeywordsSaved   = "Слова-триггеры сохранены"
	msgKeywordsWiped   = "Все слова-триггеры успешно удалены"
	msgKeywordsEmpty   = "Слова-триггеры не настроены"
	msgWelcomeSaved    = "Приветственное сообщение успешно сохранено!"
	msgRecurrentSaved  = "Рекуррентное сообщение успешно сохранено!"
)

// mention renders an HTML text mention that works for users without a
// public username.
func mention(userID int64, name string) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}
