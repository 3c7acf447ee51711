// Package activity classifies navigations into coarse activity buckets.
//
// Classification is a pure function of the URL: the host's registrable
// domain (eTLD+1 per the public suffix list) is matched against fixed
// lists, and anything unmatched or unparsable is general internet use.
package activity

import (
	"net"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"golang.org/x/net/publicsuffix"
)

var social = []string{
	"facebook.com", "instagram.com", "twitter.com", "x.com", "tiktok.com",
	"snapchat.com", "reddit.com", "pinterest.com", "tumblr.com", "discord.com",
	"discord.gg", "whatsapp.com", "telegram.org", "linkedin.com", "threads.net",
	"vk.com", "messenger.com",
}

var gaming = []string{
	"roblox.com", "minecraft.net", "epicgames.com", "fortnite.com",
	"steampowered.com", "steamcommunity.com", "twitch.tv", "ea.com",
	"playstation.com", "xbox.com", "nintendo.com", "miniclip.com", "poki.com",
	"friv.com", "crazygames.com", "itch.io",
}

var education = []string{
	"khanacademy.org", "wikipedia.org", "coursera.org", "edx.org",
	"duolingo.com", "quizlet.com", "scratch.mit.edu", "code.org",
	"brainpop.com", "britannica.com", "classroom.google.com", "desmos.com",
}

type bucket struct {
	id      models.ActivityID
	domains map[string]struct{}
}

var buckets = []bucket{
	{models.ActivitySocial, set(social)},
	{models.ActivityGaming, set(gaming)},
	{models.ActivityEducation, set(education)},
}

func set(list []string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, d := range list {
		m[d] = struct{}{}
	}
	return m
}

// Classify maps a navigation URL to an activity. Only http and https URLs
// with a host are considered; everything else is ActivityInternet.
func Classify(rawURL string) models.ActivityID {
	host := Host(rawURL)
	if host == "" {
		return models.ActivityInternet
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		registrable = host
	}

	for _, b := range buckets {
		if matches(b.domains, host, registrable) {
			return b.id
		}
	}
	return models.ActivityInternet
}

// matches checks the registrable domain exactly, then walks the host's
// parent domains so entries below the registrable level (scratch.mit.edu)
// match their subdomains too.
func matches(domains map[string]struct{}, host, registrable string) bool {
	if _, ok := domains[registrable]; ok {
		return true
	}
	for h := host; h != registrable && h != ""; {
		if _, ok := domains[h]; ok {
			return true
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
	}
	return false
}

// Host extracts the lower-cased host of an http(s) URL, without port or a
// trailing dot. It returns "" for anything else, including IP literals.
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" || net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return ""
	}
	return host
}
