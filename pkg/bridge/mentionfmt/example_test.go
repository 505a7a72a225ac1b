// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package mentionfmt_test

import (
	"fmt"

	"github.com/orgvanize/slackline/pkg/bridge/mentionfmt"
)

func ExampleOutbound() {
	res := mentionfmt.Outbound("hello <@U1AAA>", func(id string) (string, bool) {
		return "Alice Doe", id == "U1AAA"
	})
	fmt.Println(res.Text)
	// Output: hello `@Alice Doe`
}

func ExampleInbound() {
	res := mentionfmt.Inbound("hello `@Alice Doe`", mentionfmt.FixedRecipient("Alice Doe", "U1AAA"))
	fmt.Println(res.Text)
	// Output: hello <@U1AAA>
}
