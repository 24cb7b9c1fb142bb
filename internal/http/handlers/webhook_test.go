package handlers

import (
	"testing"
)

func TestNormalizePrivateTextMessage(t *testing.T) {
	in, ok := normalize(telegramUpdate{
		UpdateID: 1,
		Message: &telegramMessage{
			From: &telegramUser{ID: 100, Username: "alice"},
			Chat: telegramChat{ID: 100, Type: "private"},
			Text: "hello",
		},
	})
	if !ok {
		t.Fatal("private text message was dropped")
	}
	if in.SenderID != 100 || in.Username != "alice" || in.Text != "hello" {
		t.Errorf("unexpected inbound: %+v", in)
	}
}

func TestNormalizeDropsGroupMessages(t *testing.T) {
	_, ok := normalize(telegramUpdate{
		Message: &telegramMessage{
			From: &telegramUser{ID: 100},
			Chat: telegramChat{ID: -200, Type: "supergroup"},
			Text: "hello group",
		},
	})
	if ok {
		t.Error("group message was not dropped")
	}
}

func TestNormalizeDropsBotSenders(t *testing.T) {
	_, ok := normalize(telegramUpdate{
		Message: &telegramMessage{
			From: &telegramUser{ID: 100, IsBot: true},
			Chat: telegramChat{Type: "private"},
			Text: "beep",
		},
	})
	if ok {
		t.Error("bot message was not dropped")
	}
}

func TestNormalizeDocumentWithCaption(t *testing.T) {
	in, ok := normalize(telegramUpdate{
		Message: &telegramMessage{
			From:     &telegramUser{ID: 100},
			Chat:     telegramChat{Type: "private"},
			Caption:  "the faq",
			Document: &telegramDocument{FileID: "f1", FileName: "faq.txt", MimeType: "text/plain", FileSize: 42},
		},
	})
	if !ok {
		t.Fatal("document message was dropped")
	}
	if in.Text != "the faq" {
		t.Errorf("caption not promoted to text: %q", in.Text)
	}
	if in.Document == nil || in.Document.FileID != "f1" || in.Document.Filename != "faq.txt" {
		t.Errorf("unexpected document: %+v", in.Document)
	}
}

func TestNormalizeDropsEmptyUpdates(t *testing.T) {
	if _, ok := normalize(telegramUpdate{}); ok {
		t.Error("update without message was not dropped")
	}
	if _, ok := normalize(telegramUpdate{
		Message: &telegramMessage{From: &telegramUser{ID: 1}, Chat: telegramChat{Type: "private"}},
	}); ok {
		t.Error("message without text or document was not dropped")
	}
}
