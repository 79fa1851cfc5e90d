// Package nasmrel 解析 nasm 发布目录页，找出最新的正式版本。
package nasmrel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/ffbuild/internal/infra/httpx"
	"github.com/John-Robertt/ffbuild/internal/version"
)

// 目录页只有几 KB。
const maxListingBytes = 4 << 20

// 形如 "2.16.03/" 的目录链接；rc 等预发布目录不匹配。
var releaseDirRE = regexp.MustCompile(`^\d+\.\d+(\.\d+)*$`)

// Resolve 抓取 baseURL（nasm releasebuilds 目录页）并返回最新版本号。
func Resolve(ctx context.Context, c *http.Client, baseURL string) (string, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return "", errors.New("nasm.base_url 不能为空")
	}
	html, err := httpx.Get(ctx, c, baseURL+"/", maxListingBytes)
	if err != nil {
		return "", err
	}
	versions, err := ParseListing(html)
	if err != nil {
		return "", err
	}
	latest, err := version.Latest(versions)
	if err != nil {
		return "", fmt.Errorf("发布目录页中没有正式版本：%s", baseURL)
	}
	return latest, nil
}

// ParseListing 从目录页 HTML 中提取全部版本目录名（保持页面顺序）。
func ParseListing(html []byte) ([]string, error) {
	if len(html) == 0 {
		return nil, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	var out []string
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		name := strings.TrimSuffix(strings.TrimSpace(href), "/")
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
		if !releaseDirRE.MatchString(name) || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	})
	return out, nil
}

// TarballURL 返回 <base>/<ver>/nasm-<ver>.tar.gz。
func TarballURL(baseURL, ver string) string {
	return strings.TrimRight(baseURL, "/") + "/" + ver + "/" + TarballName(ver)
}

func TarballName(ver string) string {
	return "nasm-" + ver + ".tar.gz"
}
