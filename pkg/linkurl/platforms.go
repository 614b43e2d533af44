// Platform table and denylists. Order matters: more specific platforms come
// before overlapping ones, and the "website" catch-all is always last.

package linkurl

import (
	"net/url"
	"strings"
)

type platform struct {
	ID       string
	Label    string
	Hosts    []string                        // exact hostnames (www already stripped)
	FoldPath bool                            // handle paths are case-insensitive; lowercase during normalization
	Validate func(u *url.URL) (bool, string) // nil means any path is valid
	Identity func(u *url.URL) string         // dedup key suffix; "" falls back to host+path
	Title    func(u *url.URL) string         // nil means the platform label
}

func (p *platform) matchHost(host string) bool {
	if p.ID == "website" {
		return true
	}
	for _, h := range p.Hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func (p *platform) title(u *url.URL) string {
	if p.Title != nil {
		if t := p.Title(u); t != "" {
			return t
		}
	}
	return p.Label
}

// handleIdentity lowercases the first path segment and strips a leading @.
func handleIdentity(u *url.URL) string {
	segs := pathSegments(u)
	if len(segs) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(segs[0], "@"))
}

// handleTitle renders "@handle on <label>" for handle-shaped profile URLs.
func handleTitle(label string) func(u *url.URL) string {
	return func(u *url.URL) string {
		if h := handleIdentity(u); h != "" {
			return "@" + h + " on " + label
		}
		return ""
	}
}

// oneSegmentValidator requires exactly one non-empty, non-reserved path
// segment (the profile handle shape shared by most link-in-bio platforms).
func oneSegmentValidator(label string, reserved map[string]bool) func(u *url.URL) (bool, string) {
	return func(u *url.URL) (bool, string) {
		segs := pathSegments(u)
		if len(segs) != 1 {
			return false, label + " links must point to a profile, e.g. " + strings.ToLower(label) + ".com/yourname"
		}
		if reserved[strings.ToLower(segs[0])] {
			return false, label + " links must point to a profile, not a " + segs[0] + " page"
		}
		return true, ""
	}
}

var instagramReserved = map[string]bool{
	"p": true, "reel": true, "reels": true, "explore": true, "stories": true,
	"accounts": true, "direct": true, "about": true, "legal": true,
}

var tiktokReservedPaths = map[string]bool{
	"music": true, "video": true, "tag": true, "discover": true, "live": true,
	"foryou": true, "following": true, "upload": true, "about": true, "legal": true,
}

var spotifyKinds = map[string]bool{"artist": true, "album": true, "track": true, "playlist": true, "show": true, "episode": true}

var platforms = []platform{
	{
		ID: "instagram", Label: "Instagram",
		Hosts:    []string{"instagram.com"},
		FoldPath: true,
		Validate: oneSegmentValidator("Instagram", instagramReserved),
		Identity: handleIdentity,
		Title:    handleTitle("Instagram"),
	},
	{
		ID: "tiktok", Label: "TikTok",
		Hosts:    []string{"tiktok.com"},
		FoldPath: true,
		Validate: func(u *url.URL) (bool, string) {
			segs := pathSegments(u)
			if len(segs) != 1 || !strings.HasPrefix(segs[0], "@") {
				return false, "TikTok links must point to a profile, e.g. tiktok.com/@yourname"
			}
			return true, ""
		},
		Identity: handleIdentity,
		Title:    handleTitle("TikTok"),
	},
	{
		ID: "youtube", Label: "YouTube",
		Hosts: []string{"youtube.com", "youtu.be", "m.youtube.com"},
		Validate: func(u *url.URL) (bool, string) {
			if u.Host == "youtu.be" {
				return false, "YouTube links must point to a channel, not a video"
			}
			segs := pathSegments(u)
			if len(segs) == 0 {
				return false, "YouTube links must point to a channel, e.g. youtube.com/@yourname"
			}
			switch {
			case strings.HasPrefix(segs[0], "@"):
				return true, ""
			case segs[0] == "channel" && len(segs) > 1:
				return true, ""
			case (segs[0] == "c" || segs[0] == "user") && len(segs) > 1:
				return true, ""
			}
			return false, "YouTube links must point to a channel, e.g. youtube.com/@yourname"
		},
		Identity: func(u *url.URL) string {
			segs := pathSegments(u)
			switch {
			case len(segs) == 0:
				return ""
			case strings.HasPrefix(segs[0], "@"):
				return strings.ToLower(strings.TrimPrefix(segs[0], "@"))
			case segs[0] == "channel" && len(segs) > 1:
				return "channel:" + segs[1] // channel IDs are case-sensitive
			case (segs[0] == "c" || segs[0] == "user") && len(segs) > 1:
				return strings.ToLower(segs[1])
			}
			return ""
		},
		Title: handleTitle("YouTube"),
	},
	{
		ID: "spotify", Label: "Spotify",
		Hosts: []string{"open.spotify.com", "spotify.com"},
		Validate: func(u *url.URL) (bool, string) {
			segs := pathSegments(u)
			if len(segs) < 2 || !spotifyKinds[strings.ToLower(segs[0])] {
				return false, "Spotify links must point to an artist, album, or track"
			}
			return true, ""
		},
		Identity: func(u *url.URL) string {
			segs := pathSegments(u)
			if len(segs) < 2 {
				return ""
			}
			return strings.ToLower(segs[0]) + ":" + segs[1]
		},
	},
	{
		ID: "x", Label: "X",
		Hosts:    []string{"x.com", "twitter.com"},
		FoldPath: true,
		Validate: oneSegmentValidator("X", map[string]bool{"home": true, "search": true, "explore": true, "i": true, "intent": true, "hashtag": true}),
		Identity: handleIdentity,
		Title:    handleTitle("X"),
	},
	{
		ID: "facebook", Label: "Facebook",
		Hosts:    []string{"facebook.com", "fb.com", "m.facebook.com"},
		FoldPath: true,
		Identity: handleIdentity,
	},
	{
		ID: "twitch", Label: "Twitch",
		Hosts:    []string{"twitch.tv"},
		FoldPath: true,
		Validate: oneSegmentValidator("Twitch", map[string]bool{"directory": true, "videos": true, "p": true}),
		Identity: handleIdentity,
		Title:    handleTitle("Twitch"),
	},
	{
		ID: "soundcloud", Label: "SoundCloud",
		Hosts:    []string{"soundcloud.com"},
		FoldPath: true,
		Identity: handleIdentity,
	},
	{
		ID: "applemusic", Label: "Apple Music",
		Hosts: []string{"music.apple.com"},
	},
	{
		ID: "bandcamp", Label: "Bandcamp",
		Hosts: []string{"bandcamp.com"},
		Identity: func(u *url.URL) string {
			// Artist pages are subdomains: artist.bandcamp.com.
			host := strings.ToLower(u.Host)
			if sub, ok := strings.CutSuffix(host, ".bandcamp.com"); ok && sub != "" {
				return sub
			}
			return ""
		},
	},
	{
		ID: "discord", Label: "Discord",
		Hosts: []string{"discord.gg", "discord.com"},
	},
	{
		ID: "patreon", Label: "Patreon",
		Hosts:    []string{"patreon.com"},
		FoldPath: true,
		Identity: handleIdentity,
	},
	{
		ID: "snapchat", Label: "Snapchat",
		Hosts:    []string{"snapchat.com"},
		FoldPath: true,
		Identity: handleIdentity,
	},
	{
		ID: "linktree", Label: "Linktree",
		Hosts:    []string{"linktr.ee", "linktree.com"},
		FoldPath: true,
		Validate: oneSegmentValidator("Linktree", map[string]bool{"s": true, "discover": true, "login": true, "register": true}),
		Identity: handleIdentity,
	},
	{
		ID: "beacons", Label: "Beacons",
		Hosts:    []string{"beacons.ai", "beacons.page"},
		FoldPath: true,
		Validate: oneSegmentValidator("Beacons", map[string]bool{"i": true, "signup": true, "login": true}),
		Identity: handleIdentity,
	},
	{
		ID: "laylo", Label: "Laylo",
		Hosts:    []string{"laylo.com"},
		FoldPath: true,
		Validate: oneSegmentValidator("Laylo", map[string]bool{"drops": true, "login": true}),
		Identity: handleIdentity,
	},
	{
		// Catch-all; matchHost always succeeds for this entry.
		ID: "website", Label: "Website",
		Validate: func(u *url.URL) (bool, string) {
			if !strings.Contains(u.Host, ".") {
				return false, "not a recognizable website address"
			}
			return true, ""
		},
	},
}

// trackingParams are exact-match query parameters stripped during
// normalization, in addition to the utm_ prefix family.
var trackingParams = map[string]bool{
	"fbclid":   true,
	"gclid":    true,
	"dclid":    true,
	"msclkid":  true,
	"igshid":   true,
	"igsh":     true,
	"mc_cid":   true,
	"mc_eid":   true,
	"ref_src":  true,
	"ref_url":  true,
	"si":       true, // youtube/spotify share token
	"feature":  true, // youtube share source
	"mibextid": true,
}

// domainTypos maps frequently observed host misspellings to the real host.
var domainTypos = map[string]string{
	"instagram.con": "instagram.com",
	"instagram.comm": "instagram.com",
	"instgram.com":  "instagram.com",
	"instagran.com": "instagram.com",
	"tiktok.con":    "tiktok.com",
	"youtub.com":    "youtube.com",
	"youtube.con":   "youtube.com",
	"yotube.com":    "youtube.com",
	"twiter.com":    "twitter.com",
	"twitter.con":   "twitter.com",
	"spotify.con":   "spotify.com",
	"facebok.com":   "facebook.com",
}

// missingDotDomains repairs a missing dot before the TLD for known hosts.
var missingDotDomains = map[string]string{
	"instagramcom":  "instagram.com",
	"tiktokcom":     "tiktok.com",
	"youtubecom":    "youtube.com",
	"twittercom":    "twitter.com",
	"facebookcom":   "facebook.com",
	"spotifycom":    "spotify.com",
	"soundcloudcom": "soundcloud.com",
	"linktree":      "linktr.ee",
	"beaconsai":     "beacons.ai",
	"laylocom":      "laylo.com",
}

// shortenerDomains are dropped during extraction: the destination behind a
// shortener cannot be deduplicated without resolving it.
var shortenerDomains = map[string]bool{
	"bit.ly":      true,
	"t.co":        true,
	"tinyurl.com": true,
	"goo.gl":      true,
	"ow.ly":       true,
	"buff.ly":     true,
	"rebrand.ly":  true,
	"cutt.ly":     true,
	"is.gd":       true,
	"shorturl.at": true,
	"rb.gy":       true,
	"tiny.cc":     true,
}
