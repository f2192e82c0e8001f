// Package controller parses at-message commands and drives the article
// cache, the scraper, and the outbound API on the user's behalf.
package controller

import (
	"context"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"github.com/rustcc-bot/qbot-gateway/internal/cache"
	"github.com/rustcc-bot/qbot-gateway/internal/gwproto"
	"github.com/rustcc-bot/qbot-gateway/internal/model"
	"github.com/rustcc-bot/qbot-gateway/internal/qqapi"
	"github.com/rustcc-bot/qbot-gateway/internal/sanitize"
	"github.com/rustcc-bot/qbot-gateway/internal/scraper"
)

// whitelistedAuthorID is the only author whose at-messages are acted on;
// everyone else is silently (info-logged) ignored.
const whitelistedAuthorID = "1453422017104534300"

const helpText = "支持的命令：\n爬取 <url> - 抓取一篇文章\n发送 <date> - 发送已抓取的日报（格式 YYYY-MM-DD）"

var mentionPattern = regexp.MustCompile(`<@!\d+>`)

// Controller owns the article cache and routes parsed commands to the
// scraper and outbound API.
type Controller struct {
	cache         *cache.Cache
	scraper       scraper.Scraper
	apiClient     qqapi.Client
	newsChannelID string
	logger        *log.Logger
}

// New builds a Controller publishing into newsChannelID.
func New(apiClient qqapi.Client, scr scraper.Scraper, newsChannelID string, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(os.Stdout, "[controller] ", log.LstdFlags)
	}
	return &Controller{
		cache:         cache.New(cache.DefaultCapacity),
		scraper:       scr,
		apiClient:     apiClient,
		newsChannelID: newsChannelID,
		logger:        logger,
	}
}

// HandleAtMessage implements the gateway engines' Handler contract:
// authorize, dispatch the parsed command, reply in the source channel.
func (c *Controller) HandleAtMessage(ctx context.Context, payload gwproto.AtMessageCreatePayload) {
	if payload.Author.ID != whitelistedAuthorID {
		c.logger.Printf("ignoring message from non-whitelisted author %s", payload.Author.ID)
		return
	}

	reply := c.dispatch(ctx, payload)
	if err := c.apiClient.ReplyTextToChannelMessage(ctx, payload.ID, payload.ChannelID, reply); err != nil {
		c.logger.Printf("failed to send message: %v", err)
	}
}

func (c *Controller) dispatch(ctx context.Context, payload gwproto.AtMessageCreatePayload) string {
	cmd, arg := parseCommand(payload.Content)
	switch cmd {
	case "爬取":
		return c.scrapeCommand(ctx, arg)
	case "发送":
		return c.publishCommand(ctx, arg)
	case "所有频道":
		return c.listChannelsCommand(ctx, payload.GuildID)
	case "帮助":
		return helpText
	default:
		return "不支持的命令"
	}
}

// parseCommand strips mention tokens and one optional leading slash, then
// splits the remainder into a command word and its argument.
func parseCommand(content string) (cmd, arg string) {
	text := mentionPattern.ReplaceAllString(content, "")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "/")
	text = strings.TrimSpace(text)

	parts := strings.SplitN(text, " ", 2)
	cmd = parts[0]
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}
	return cmd, arg
}

// sanitizeTitle replaces every '.' with '-' so the outbound API's own
// dot-to-full-width substitution doesn't mangle a title in transit.
func sanitizeTitle(s string) string {
	return strings.ReplaceAll(s, ".", "-")
}

func (c *Controller) scrapeCommand(ctx context.Context, url string) string {
	href, ok := strings.CutPrefix(url, scraper.Origin)
	if !ok {
		return "请输入合法的链接"
	}

	article, err := c.scraper.FetchPost(ctx, href)
	if err != nil {
		return fmt.Sprintf("爬取失败: %s", err)
	}

	_, hadPrevious, gc := c.cache.Insert(article)

	gcText := ""
	if gc {
		gcText = "清理完成，"
	}
	verb := "爬取成功"
	if hadPrevious {
		verb = "重新爬取成功"
	}
	return fmt.Sprintf("%s%s: %s - %s", gcText, verb, article.Date, sanitizeTitle(article.Title))
}

func (c *Controller) publishCommand(ctx context.Context, dateStr string) string {
	date, err := model.ParseDate(dateStr)
	if err != nil {
		return fmt.Sprintf("没有找到 %s 的日报", dateStr)
	}

	article, ok := c.cache.Get(date)
	if !ok {
		return fmt.Sprintf("没有找到 %s 的日报", date)
	}

	content, sanitizeErr := sanitize.Sanitize(article.ContentHTML)
	suffix := ""
	if sanitizeErr != nil {
		content = article.ContentHTML
		suffix = fmt.Sprintf("（HTML 处理失败:%s）", sanitizeErr)
	}

	title := fmt.Sprintf("[%s] %s", article.Date, article.Title)
	body := fmt.Sprintf(`<p>%s 发表于 %s</p><p><a href="%s%s">原文链接</a></p>%s`,
		article.Author, article.PublishTime, scraper.Origin, article.Href, content)

	if err := c.apiClient.SendChannelThreadHTML(ctx, c.newsChannelID, title, body); err != nil {
		return fmt.Sprintf("发送失败: %s", sanitizeTitle(err.Error()))
	}

	c.cache.Delete(date)
	return fmt.Sprintf("发送成功: %s - %s%s", article.Date, sanitizeTitle(article.Title), suffix)
}

func (c *Controller) listChannelsCommand(ctx context.Context, guildID string) string {
	channels, err := c.apiClient.ListChannels(ctx, guildID)
	if err != nil {
		return fmt.Sprintf("获取频道列表失败: %s", err)
	}

	parts := make([]string, 0, len(channels))
	for _, ch := range channels {
		parts = append(parts, fmt.Sprintf("%s %s", ch.ID, ch.Name))
	}
	return strings.Join(parts, "; ")
}
