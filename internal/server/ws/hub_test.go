package ws

import "testing"

func TestChannelFor(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    string
	}{
		{"snapshot with market id", `{"market_id":"m-1","sequence":3}`, "odds:m-1"},
		{"missing market id", `{"sequence":3}`, oddsPattern},
		{"malformed payload", `not json`, oddsPattern},
		{"empty market id", `{"market_id":""}`, oddsPattern},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := channelFor([]byte(tc.payload)); got != tc.want {
				t.Fatalf("channelFor(%q) = %q, want %q", tc.payload, got, tc.want)
			}
		})
	}
}

func TestIsSubscribed(t *testing.T) {
	c := &client{subs: map[string]bool{
		"odds:m-1":  true,
		"odds:ab-*": true,
	}}

	cases := []struct {
		channel string
		want    bool
	}{
		{"odds:m-1", true},
		{"odds:m-2", false},
		{"odds:ab-42", true},  // wildcard prefix
		{"odds:abc", false},   // prefix must match through the hyphen
		{"", false},
	}
	for _, tc := range cases {
		if got := c.isSubscribed(tc.channel); got != tc.want {
			t.Errorf("isSubscribed(%q) = %v, want %v", tc.channel, got, tc.want)
		}
	}
}

func TestHandleSubscription_OnlyOddsChannels(t *testing.T) {
	c := &client{subs: make(map[string]bool)}

	c.handleSubscription(subscribeMsg{Subscribe: []string{"odds:m-1", "admin:all", "odds:*"}})
	if !c.subs["odds:m-1"] || !c.subs["odds:*"] {
		t.Fatalf("odds channels not subscribed: %v", c.subs)
	}
	if c.subs["admin:all"] {
		t.Fatal("non-odds channel was accepted")
	}

	c.handleSubscription(subscribeMsg{Unsubscribe: []string{"odds:m-1"}})
	if c.subs["odds:m-1"] {
		t.Fatal("unsubscribe did not remove the channel")
	}
}
