package notifier

// Button is one inline keyboard button. Exactly one of Data, URL or WebApp is set.
type Button struct {
	Text   string  `json:"text"`
	Data   string  `json:"callback_data,omitempty"`
	URL    string  `json:"url,omitempty"`
	WebApp *WebApp `json:"web_app,omitempty"`
}

type WebApp struct {
	URL string `json:"url"`
}

type InlineKeyboard struct {
	Rows [][]Button `json:"inline_keyboard"`
}

func CallbackButton(text, data string) Button {
	return Button{Text: text, Data: data}
}

func URLButton(text, url string) Button {
	return Button{Text: text, URL: url}
}

func WebAppButton(text, url string) Button {
	return Button{Text: text, WebApp: &WebApp{URL: url}}
}

// Keyboard builds a keyboard from rows of buttons.
func Keyboard(rows ...[]Button) *InlineKeyboard {
	return &InlineKeyboard{Rows: rows}
}

func Row(buttons ...Button) []Button {
	return buttons
}
