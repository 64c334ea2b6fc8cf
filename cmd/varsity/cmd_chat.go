// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
	"github.com/spf13/cobra"
)

func runChatCommand(cmd *cobra.Command, args []string) {
	fmt.Println("VarsityAssist chat. Type a question, or /quit to exit.")
	if conversationID != "" {
		fmt.Printf("Resuming conversation %s\n", conversationID)
	}

	scanner := bufio.NewScanner(os.Stdin)
	currentConversation := conversationID

	for {
		fmt.Print("\nyou> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		req := datatypes.TurnRequest{
			ConversationID: currentConversation,
			Query:          line,
		}

		var resp datatypes.TurnResponse
		if err := doRequest("POST", "/v1/chat", req, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		// Follow-up questions stay in the same conversation.
		currentConversation = resp.ConversationID

		fmt.Printf("\nassistant> %s\n", resp.Answer)
		if resp.Escalated {
			fmt.Printf("(forwarded to a student advisor, ref %s)\n", resp.EscalationID)
		}
	}

	if currentConversation != "" {
		fmt.Printf("\nConversation saved as %s\n", currentConversation)
	}
}
