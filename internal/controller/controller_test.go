package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"

	"github.com/rustcc-bot/qbot-gateway/internal/gwproto"
	"github.com/rustcc-bot/qbot-gateway/internal/model"
	"github.com/rustcc-bot/qbot-gateway/internal/qqapi"
)

type fakeScraper struct {
	article model.Article
	err     error
	calls   int
}

func (f *fakeScraper) FetchPost(ctx context.Context, href string) (model.Article, error) {
	f.calls++
	if f.err != nil {
		return model.Article{}, f.err
	}
	return f.article, nil
}

type recordedCall struct {
	method string
	args   []string
}

type fakeClient struct {
	channels        []qqapi.Channel
	channelsErr     error
	sendThreadErr   error
	replyErr        error
	calls           []recordedCall
	lastReplyText   string
	lastThreadTitle string
	lastThreadHTML  string
}

func (f *fakeClient) ListChannels(ctx context.Context, guildID string) ([]qqapi.Channel, error) {
	f.calls = append(f.calls, recordedCall{method: "ListChannels", args: []string{guildID}})
	if f.channelsErr != nil {
		return nil, f.channelsErr
	}
	return f.channels, nil
}

func (f *fakeClient) ReplyTextToChannelMessage(ctx context.Context, msgID, channelID, content string) error {
	f.calls = append(f.calls, recordedCall{method: "ReplyTextToChannelMessage", args: []string{msgID, channelID, content}})
	f.lastReplyText = content
	return f.replyErr
}

func (f *fakeClient) SendChannelThreadHTML(ctx context.Context, channelID, title, html string) error {
	f.calls = append(f.calls, recordedCall{method: "SendChannelThreadHTML", args: []string{channelID, title, html}})
	f.lastThreadTitle = title
	f.lastThreadHTML = html
	return f.sendThreadErr
}

func (f *fakeClient) GetGatewayURL(ctx context.Context) (string, error) {
	return "", errors.New("not used")
}

func newTestController(client *fakeClient, scr *fakeScraper) *Controller {
	return New(client, scr, "news-channel", log.New(nopWriter{}, "", 0))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func atMessage(content string) gwproto.AtMessageCreatePayload {
	return gwproto.AtMessageCreatePayload{
		ID:        "msg-1",
		ChannelID: "caller-channel",
		GuildID:   "guild-1",
		Content:   content,
		Author:    gwproto.AtMessageAuthor{ID: whitelistedAuthorID},
	}
}

func TestHandleAtMessage_ScrapeHappyPath(t *testing.T) {
	article := model.Article{
		Href:        "/posts/123",
		Title:       "Title.With.Dots",
		Author:      "alice",
		PublishTime: "2024-04-11 10:00",
		Date:        model.Date{Year: 2024, Month: 4, Day: 11},
		ContentHTML: "<p>body</p>",
	}
	scr := &fakeScraper{article: article}
	client := &fakeClient{}
	ctrl := newTestController(client, scr)

	ctrl.HandleAtMessage(context.Background(), atMessage("<@!1> /爬取 https://rustcc.cn/posts/123"))

	if scr.calls != 1 {
		t.Fatalf("expected scraper called once, got %d", scr.calls)
	}
	if client.lastReplyText != "爬取成功: 2024-04-11 - Title-With-Dots" {
		t.Fatalf("unexpected reply: %q", client.lastReplyText)
	}
	if ctrl.cache.Len() != 1 {
		t.Fatalf("expected cache to hold 1 article, got %d", ctrl.cache.Len())
	}
}

func TestHandleAtMessage_ScrapeTriggersGC(t *testing.T) {
	client := &fakeClient{}
	scr := &fakeScraper{}
	ctrl := newTestController(client, scr)
	for day := 1; day <= 21; day++ {
		ctrl.cache.Insert(model.Article{Date: model.Date{Year: 2024, Month: 1, Day: day}, Title: "old"})
	}
	scr.article = model.Article{
		Href:        "/posts/999",
		Title:       "Fresh",
		Date:        model.Date{Year: 2024, Month: 4, Day: 11},
		ContentHTML: "<p>x</p>",
	}

	ctrl.HandleAtMessage(context.Background(), atMessage("/爬取 https://rustcc.cn/posts/999"))

	if !strings.HasPrefix(client.lastReplyText, "清理完成，爬取成功:") {
		t.Fatalf("expected GC prefix in reply, got %q", client.lastReplyText)
	}
	if ctrl.cache.Len() != 1 {
		t.Fatalf("expected cache cleared down to 1 entry, got %d", ctrl.cache.Len())
	}
}

func TestHandleAtMessage_PublishMissing(t *testing.T) {
	client := &fakeClient{}
	ctrl := newTestController(client, &fakeScraper{})

	ctrl.HandleAtMessage(context.Background(), atMessage("/发送 2024-04-11"))

	want := "没有找到 2024-04-11 的日报"
	if client.lastReplyText != want {
		t.Fatalf("reply = %q, want %q", client.lastReplyText, want)
	}
}

func TestHandleAtMessage_PublishSuccess(t *testing.T) {
	client := &fakeClient{}
	ctrl := newTestController(client, &fakeScraper{})
	date := model.Date{Year: 2024, Month: 4, Day: 11}
	ctrl.cache.Insert(model.Article{
		Href:        "/posts/123",
		Title:       "Title.With.Dots",
		Author:      "alice",
		PublishTime: "2024-04-11 10:00",
		Date:        date,
		ContentHTML: "<p>body</p>",
	})

	ctrl.HandleAtMessage(context.Background(), atMessage("/发送 2024-04-11"))

	wantTitle := "[2024-04-11] Title.With.Dots"
	if client.lastThreadTitle != wantTitle {
		t.Fatalf("thread title = %q, want %q", client.lastThreadTitle, wantTitle)
	}
	if !strings.Contains(client.lastThreadHTML, "<p>body</p>") {
		t.Fatalf("thread body missing content: %q", client.lastThreadHTML)
	}
	if !strings.Contains(client.lastThreadHTML, "alice") {
		t.Fatalf("thread body missing author: %q", client.lastThreadHTML)
	}
	if !strings.HasPrefix(client.lastReplyText, "发送成功") {
		t.Fatalf("reply = %q, want 发送成功 prefix", client.lastReplyText)
	}
	if strings.ContainsRune(client.lastReplyText, '.') {
		t.Fatalf("reply must not contain raw dots: %q", client.lastReplyText)
	}
	if ctrl.cache.Len() != 0 {
		t.Fatalf("expected published article removed from cache, got len %d", ctrl.cache.Len())
	}
}

func TestHandleAtMessage_UnknownURL(t *testing.T) {
	scr := &fakeScraper{}
	client := &fakeClient{}
	ctrl := newTestController(client, scr)

	ctrl.HandleAtMessage(context.Background(), atMessage("/爬取 https://example.com/posts/1"))

	if scr.calls != 0 {
		t.Fatalf("expected scraper not called, got %d calls", scr.calls)
	}
	if client.lastReplyText != "请输入合法的链接" {
		t.Fatalf("unexpected reply: %q", client.lastReplyText)
	}
}

func TestHandleAtMessage_UnauthorizedAuthorIgnored(t *testing.T) {
	client := &fakeClient{}
	scr := &fakeScraper{}
	ctrl := newTestController(client, scr)

	payload := atMessage("/爬取 https://rustcc.cn/posts/123")
	payload.Author = gwproto.AtMessageAuthor{ID: "someone-else"}

	ctrl.HandleAtMessage(context.Background(), payload)

	if len(client.calls) != 0 {
		t.Fatalf("expected no outbound calls for unauthorized author, got %v", client.calls)
	}
	if scr.calls != 0 {
		t.Fatalf("expected scraper not invoked, got %d calls", scr.calls)
	}
}

func TestHandleAtMessage_HelpAndUnknownCommand(t *testing.T) {
	client := &fakeClient{}
	ctrl := newTestController(client, &fakeScraper{})

	ctrl.HandleAtMessage(context.Background(), atMessage("/帮助"))
	if client.lastReplyText != helpText {
		t.Fatalf("expected help text, got %q", client.lastReplyText)
	}

	ctrl.HandleAtMessage(context.Background(), atMessage("/不存在的命令"))
	if client.lastReplyText != "不支持的命令" {
		t.Fatalf("expected fallback reply, got %q", client.lastReplyText)
	}
}

func TestHandleAtMessage_ListChannels(t *testing.T) {
	client := &fakeClient{channels: []qqapi.Channel{
		{ID: "ch1", Name: "频道一"},
		{ID: "ch2", Name: "频道二"},
	}}
	ctrl := newTestController(client, &fakeScraper{})

	ctrl.HandleAtMessage(context.Background(), atMessage("/所有频道"))

	want := "ch1 频道一; ch2 频道二"
	if client.lastReplyText != want {
		t.Fatalf("reply = %q, want %q", client.lastReplyText, want)
	}
}

func TestHandleAtMessage_ScrapeFailurePropagatesError(t *testing.T) {
	scr := &fakeScraper{err: fmt.Errorf("boom")}
	client := &fakeClient{}
	ctrl := newTestController(client, scr)

	ctrl.HandleAtMessage(context.Background(), atMessage("/爬取 https://rustcc.cn/posts/123"))

	if client.lastReplyText != "爬取失败: boom" {
		t.Fatalf("unexpected reply: %q", client.lastReplyText)
	}
}
