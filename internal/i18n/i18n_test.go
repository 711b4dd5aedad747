package i18n

import (
	"sync"
	"testing"
)

func TestTranslateFollowsLanguage(t *testing.T) {
	translator := NewDefaultTranslator(LanguageJapanese)

	if text := translator.Translate("menu.call"); text != "発信" {
		t.Errorf("Expected '発信', got '%s'", text)
	}

	translator.SetLanguage(LanguageEnglish)
	if translator.GetLanguage() != LanguageEnglish {
		t.Fatalf("Expected language to be en, got %s", translator.GetLanguage())
	}
	if text := translator.Translate("menu.call"); text != "Call" {
		t.Errorf("Expected 'Call', got '%s'", text)
	}
}

func TestTranslateFallback(t *testing.T) {
	translator := NewTranslator(LanguageJapanese)
	translator.LoadMap(LanguageEnglish, map[string]string{"menu.hangup": "Hang up"})

	// Missing Japanese strings fall back to English, then to the key
	if text := translator.Translate("menu.hangup"); text != "Hang up" {
		t.Errorf("Expected English fallback, got '%s'", text)
	}
	if text := translator.Translate("menu.transfer"); text != "menu.transfer" {
		t.Errorf("Expected the key itself, got '%s'", text)
	}
}

func TestTranslateWithFormat(t *testing.T) {
	translator := NewDefaultTranslator(LanguageEnglish)

	text := translator.TranslateWithFormat("notification.ready", map[string]string{"room": "standup"})
	if text != "Connected to room standup" {
		t.Errorf("Expected room to be substituted, got '%s'", text)
	}

	translator.SetLanguage(LanguageJapanese)
	text = translator.TranslateWithFormat("notification.ready", map[string]string{"room": "standup"})
	if text != "ルーム standup に接続しました" {
		t.Errorf("Expected Japanese room notice, got '%s'", text)
	}
}

func TestGetAllTranslationsIsCopy(t *testing.T) {
	translator := NewDefaultTranslator(LanguageEnglish)

	all := translator.GetAllTranslations()
	if all["menu.quit"] != "Quit" {
		t.Errorf("Expected 'Quit', got '%s'", all["menu.quit"])
	}

	all["menu.quit"] = "Exit"
	if text := translator.Translate("menu.quit"); text != "Quit" {
		t.Errorf("Expected caller edits not to leak, got '%s'", text)
	}

	if len(NewTranslator(LanguageJapanese).GetAllTranslations()) != 0 {
		t.Error("Expected no strings for an empty translator")
	}
}

func TestLoadMapMerges(t *testing.T) {
	translator := NewDefaultTranslator(LanguageEnglish)
	translator.LoadMap(LanguageEnglish, map[string]string{"menu.call": "Dial"})

	if text := translator.Translate("menu.call"); text != "Dial" {
		t.Errorf("Expected override 'Dial', got '%s'", text)
	}
	if text := translator.Translate("menu.quit"); text != "Quit" {
		t.Errorf("Expected built-in 'Quit' to survive, got '%s'", text)
	}
}

func TestDeviceLabel(t *testing.T) {
	tests := []struct {
		lang   Language
		device string
		want   string
	}{
		{LanguageJapanese, "wired_headset", "ヘッドセット"},
		{LanguageJapanese, "earpiece", "受話口"},
		{LanguageEnglish, "speaker_phone", "Speaker"},
		{LanguageEnglish, "none", "None"},
		{LanguageJapanese, "bluetooth_car_kit", "Bluetooth Car Kit"},
	}

	for _, tt := range tests {
		if label := NewDefaultTranslator(tt.lang).DeviceLabel(tt.device); label != tt.want {
			t.Errorf("DeviceLabel(%s, %s) = %q, want %q", tt.lang, tt.device, label, tt.want)
		}
	}
}

func TestValidateLanguage(t *testing.T) {
	for _, lang := range GetSupportedLanguages() {
		if !ValidateLanguage(string(lang)) {
			t.Errorf("Expected supported language %s to validate", lang)
		}
	}
	for _, lang := range []string{"fr", "ja-JP", ""} {
		if ValidateLanguage(lang) {
			t.Errorf("Expected %q to be rejected", lang)
		}
	}
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		input    string
		expected Language
	}{
		{"ja", LanguageJapanese},
		{"ja-JP", LanguageJapanese},
		{"ja_JP.UTF-8", LanguageJapanese},
		{"en-US,en;q=0.9", LanguageEnglish},
		{"fr-FR,ja;q=0.8", LanguageJapanese},
		{"de", LanguageEnglish},
		{"", LanguageEnglish},
		{"POSIX", LanguageEnglish},
	}

	for _, test := range tests {
		if result := MatchLanguage(test.input); result != test.expected {
			t.Errorf("MatchLanguage(%q) = %s, expected %s", test.input, result, test.expected)
		}
	}
}

func TestDetectSystemLanguage(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "ja_JP.UTF-8")

	if language := DetectSystemLanguage(); language != LanguageJapanese {
		t.Errorf("Expected ja, got %s", language)
	}

	t.Setenv("LC_ALL", "C")
	if language := DetectSystemLanguage(); language != LanguageEnglish {
		t.Errorf("Expected en for C locale, got %s", language)
	}
}

func TestDefaultTranslationsHaveSameKeys(t *testing.T) {
	en := DefaultEnglishTranslations()
	ja := DefaultJapaneseTranslations()

	for key := range en {
		if _, ok := ja[key]; !ok {
			t.Errorf("Japanese translation missing key %s", key)
		}
	}
	if len(en) != len(ja) {
		t.Errorf("Expected same number of keys, got en=%d ja=%d", len(en), len(ja))
	}
}

func TestConcurrentLanguageSwitch(t *testing.T) {
	translator := NewDefaultTranslator(LanguageEnglish)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				translator.SetLanguage(LanguageJapanese)
			}
			if text := translator.Translate("menu.quit"); text != "Quit" && text != "終了" {
				t.Errorf("Unexpected translation '%s'", text)
			}
		}(i)
	}
	wg.Wait()
}
