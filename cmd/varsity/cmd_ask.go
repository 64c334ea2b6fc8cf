// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/VarsityAI/VarsityAssist/services/orchestrator/datatypes"
	"github.com/spf13/cobra"
)

func runAskCommand(cmd *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	fmt.Printf("Asking: %s\n", question)
	fmt.Println("---")

	req := datatypes.TurnRequest{
		ConversationID: conversationID,
		Query:          question,
	}

	var resp datatypes.TurnResponse
	if err := doRequest("POST", "/v1/chat", req, &resp); err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("\nAnswer:\n%s\n", resp.Answer)

	if len(resp.Sources) > 0 {
		fmt.Println("\nSources Used:")
		for i, source := range resp.Sources {
			scoreInfo := ""
			if source.Score != 0 {
				scoreInfo = fmt.Sprintf("(Score: %.4f)", source.Score)
			}
			fmt.Printf("%d. %s %s\n", i+1, source.Source, scoreInfo)
		}
	}

	if len(resp.ToolsUsed) > 0 {
		fmt.Printf("\nRecords consulted: %s\n", strings.Join(resp.ToolsUsed, ", "))
	}

	if resp.Escalated {
		fmt.Printf("\nThis question was forwarded to a student advisor (ref %s).\n",
			resp.EscalationID)
	}

	fmt.Printf("\nConversation: %s\n", resp.ConversationID)
	fmt.Println("---")
}

func runHistoryCommand(cmd *cobra.Command, args []string) {
	var conv datatypes.Conversation
	if err := doRequest("GET", "/v1/conversations/"+args[0], nil, &conv); err != nil {
		log.Fatalf("Error: %v", err)
	}

	fmt.Printf("Conversation %s (%d turns)\n", conv.ID, len(conv.Turns))
	for _, turn := range conv.Turns {
		fmt.Println("---")
		printMessage(turn.UserMessage)
		printMessage(turn.Reply)
		if turn.Escalated {
			fmt.Println("  [escalated to a student advisor]")
		}
	}
}

func printMessage(msg datatypes.Message) {
	ts := time.UnixMilli(msg.Timestamp).Format("2006-01-02 15:04")
	fmt.Printf("[%s] %s: %s\n", ts, msg.Role, msg.Content)
	if msg.Rating != 0 {
		fmt.Printf("  rated %d/5", msg.Rating)
		if msg.Comment != "" {
			fmt.Printf(" (%s)", msg.Comment)
		}
		fmt.Println()
	}
}

func runRateCommand(cmd *cobra.Command, args []string) {
	req := datatypes.RatingRequest{
		Rating:  ratingValue,
		Comment: ratingComment,
	}
	if err := doRequest("POST", "/v1/messages/"+args[0]+"/rating", req, nil); err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Printf("Rated message %s: %d/5\n", args[0], ratingValue)
}

func runEscalationsCommand(cmd *cobra.Command, args []string) {
	var resp struct {
		Escalations []datatypes.Escalation `json:"escalations"`
	}
	if err := doRequest("GET", "/v1/escalations", nil, &resp); err != nil {
		log.Fatalf("Error: %v", err)
	}

	if len(resp.Escalations) == 0 {
		fmt.Println("No open escalations.")
		return
	}

	for _, esc := range resp.Escalations {
		ts := time.UnixMilli(esc.CreatedAt).Format("2006-01-02 15:04")
		fmt.Printf("[%s] %s\n", ts, esc.ID)
		fmt.Printf("  question: %s\n", esc.Query)
		fmt.Printf("  reason:   %s\n", esc.Reason)
		if esc.SubjectID != "" {
			fmt.Printf("  student:  %s\n", esc.SubjectID)
		}
		fmt.Println()
	}
}
