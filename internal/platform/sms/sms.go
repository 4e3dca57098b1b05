// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sms delivers login codes to phones.
package sms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/taibuivan/riyamaga/internal/platform/events"
)

// Sender delivers a one-time code to a phone number.
type Sender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// messageCreator is the part of the Twilio REST API used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends codes through the Twilio Messages API.
type TwilioSender struct {
	api    messageCreator
	from   string
	logger *slog.Logger
}

// NewTwilioSender builds a sender from account credentials.
func NewTwilioSender(accountSID, authToken, from string, logger *slog.Logger) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api, from: from, logger: logger}
}

// SendOTP implements [Sender].
func (sender *TwilioSender) SendOTP(ctx context.Context, phone, code string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(sender.from)
	params.SetBody(MessageBody(code))

	message, err := sender.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("sms: twilio delivery failed: %w", err)
	}

	sid := ""
	if message != nil && message.Sid != nil {
		sid = *message.Sid
	}
	sender.logger.InfoContext(ctx, "sms_dispatched",
		slog.String("phone", events.MaskPhone(phone)),
		slog.String("message_sid", sid),
	)
	return nil
}

// MessageBody renders the SMS text for code.
func MessageBody(code string) string {
	return fmt.Sprintf("Your Riyamaga login code is %s. Never share it with anyone.", code)
}

// # Logger Sender

// LogSender records that a code would have been sent. The code itself is never logged.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a [LogSender].
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendOTP implements [Sender].
func (sender *LogSender) SendOTP(ctx context.Context, phone, _ string) error {
	sender.logger.InfoContext(ctx, "sms_delivery_skipped",
		slog.String("phone", events.MaskPhone(phone)),
		slog.String("reason", "no sms provider configured"),
	)
	return nil
}
