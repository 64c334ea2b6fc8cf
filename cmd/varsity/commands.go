// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	conversationID string
	authToken      string
	category       string
	ratingValue    int
	ratingComment  string

	servePort          int
	serveLLMBackend    string
	serveWeaviateURL   string
	serveRecordsURL    string
	serveDataDir       string
	serveToolTimeout   int
	serveEnableMetrics bool

	rootCmd = &cobra.Command{
		Use:   "varsity",
		Short: "A cli to talk to the VarsityAssist student chatbot",
		Long: `Varsity is a command line client for the VarsityAssist
orchestrator. It asks questions, reviews conversation transcripts,
rates replies, and ingests documents into the knowledge base.`,
	}

	// --- Chat ---
	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Asks the chatbot a question",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand, // Defined in cmd_ask.go
	}

	historyCmd = &cobra.Command{
		Use:   "history [conversation_id]",
		Short: "Prints the transcript of a conversation",
		Args:  cobra.ExactArgs(1),
		Run:   runHistoryCommand, // Defined in cmd_ask.go
	}

	rateCmd = &cobra.Command{
		Use:   "rate [message_id]",
		Short: "Rates an assistant reply from 1 to 5",
		Args:  cobra.ExactArgs(1),
		Run:   runRateCommand, // Defined in cmd_ask.go
	}

	escalationsCmd = &cobra.Command{
		Use:   "escalations",
		Short: "Lists questions escalated to student advisors",
		Run:   runEscalationsCommand, // Defined in cmd_ask.go
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Starts an interactive chat session",
		Run:   runChatCommand, // Defined in cmd_chat.go
	}

	// --- Server ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Runs the orchestrator server in-process",
		Run:   runServeCommand, // Defined in cmd_serve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Prints the varsity version",
		Run:   runVersionCommand, // Defined in cmd_serve.go
	}

	// --- Knowledge Base ---
	ingestCmd = &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingests documents into the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		Run:   runIngestCommand, // Defined in cmd_ingest.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "",
		"Bearer token for the student portal (defaults to $VARSITY_TOKEN)")

	askCmd.Flags().StringVarP(&conversationID, "conversation", "c", "",
		"Continue an existing conversation")
	chatCmd.Flags().StringVarP(&conversationID, "conversation", "c", "",
		"Resume an existing conversation")

	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (default 12210)")
	serveCmd.Flags().StringVar(&serveLLMBackend, "llm", "", "LLM backend: ollama or openai")
	serveCmd.Flags().StringVar(&serveWeaviateURL, "weaviate-url", "", "Weaviate knowledge base URL")
	serveCmd.Flags().StringVar(&serveRecordsURL, "records-url", "", "Student records service URL")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "Conversation store directory")
	serveCmd.Flags().IntVar(&serveToolTimeout, "tool-timeout", 0, "Per-tool timeout in seconds")
	serveCmd.Flags().BoolVar(&serveEnableMetrics, "metrics", true, "Expose Prometheus metrics")

	rateCmd.Flags().IntVarP(&ratingValue, "rating", "r", 0, "Rating from 1 to 5")
	rateCmd.Flags().StringVarP(&ratingComment, "comment", "m", "", "Optional comment")
	_ = rateCmd.MarkFlagRequired("rating")

	ingestCmd.Flags().StringVar(&category, "category", "general",
		"Document category (handbook, calendar, fees, general)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(escalationsCmd)
	rootCmd.AddCommand(ingestCmd)
}
