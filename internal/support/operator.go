package support

import (
	"context"

	"supportdesk/backend/internal/media"
	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/telegram"

	"go.uber.org/zap"
)

// Outcome labels what happened to an inbound operator event.
type Outcome string

const (
	OutcomeStored        Outcome = "stored"
	OutcomeCommand       Outcome = "command"
	OutcomeInvalid       Outcome = "invalid"
	OutcomeForeignChat   Outcome = "foreign_chat"
	OutcomeNoThread      Outcome = "no_thread"
	OutcomeSelfEcho      Outcome = "self_echo"
	OutcomeEmpty         Outcome = "empty"
	OutcomeUnknownThread Outcome = "unknown_thread"
	OutcomeFailed        Outcome = "failed"
)

// HandleOperatorReply ingests a raw operator webhook event. It never fails: the
// webhook sender gets an acknowledgement whatever happens here, and the outcome is
// only reported for logging and metrics.
func (s *Service) HandleOperatorReply(ctx context.Context, raw []byte) Outcome {
	outcome, convID := s.handleOperatorReply(ctx, raw)
	operatorEvents.WithLabelValues(string(outcome)).Inc()
	if outcome != OutcomeStored && outcome != OutcomeCommand {
		s.log.Debug("Operator event not stored", zap.String("conversation_id", convID),
			zap.String("operation", "handle_operator_reply"), zap.String("outcome", string(outcome)))
	}
	return outcome
}

func (s *Service) handleOperatorReply(ctx context.Context, raw []byte) (Outcome, string) {
	reply, err := s.bridge.RelayInbound(raw)
	if err != nil {
		s.log.Info("Ignoring operator event", zap.String("operation", "handle_operator_reply"), zap.Error(err))
		return OutcomeInvalid, ""
	}

	switch {
	case reply.ChatID != s.bridge.SupportChatID():
		return OutcomeForeignChat, ""
	case reply.ThreadID == "":
		return OutcomeNoThread, ""
	case reply.IsBot:
		return OutcomeSelfEcho, ""
	case !reply.HasContent():
		return OutcomeEmpty, ""
	}

	conv, err := s.store.FindByOperatorThread(ctx, reply.ThreadID)
	if err != nil {
		s.log.Error("Failed to resolve operator thread", zap.String("operation", "handle_operator_reply"),
			zap.String("thread_id", reply.ThreadID), zap.Error(err))
		return OutcomeFailed, ""
	}
	if conv == nil {
		return OutcomeUnknownThread, ""
	}

	if status, ok := telegram.ParseStatusCommand(reply.Text); ok && reply.Attachment == nil {
		if _, err := s.applyStatus(ctx, conv, status, false); err != nil {
			return OutcomeFailed, conv.ID
		}
		return OutcomeCommand, conv.ID
	}

	var stored *media.Object
	if reply.Attachment != nil {
		stored = s.storeOperatorAttachment(ctx, conv, reply.Attachment)
	}
	var attachmentURL string
	if stored != nil {
		attachmentURL = stored.PublicURL
	}
	if reply.Text == "" && attachmentURL == "" {
		return OutcomeFailed, conv.ID
	}

	msg := &models.Message{
		ConversationID:    conv.ID,
		SenderType:        models.SenderSupport,
		SenderName:        reply.SenderName,
		SenderOperatorID:  models.StringPtr(reply.SenderID),
		Content:           models.StringPtr(reply.Text),
		AttachmentURL:     models.StringPtr(attachmentURL),
		OperatorMessageID: models.StringPtr(reply.MessageID),
	}
	if err := s.appendMessage(ctx, msg); err != nil {
		s.storeFailure("handle_operator_reply", conv.ID, err)
		if stored != nil {
			s.discardAttachment(ctx, conv.ID, stored)
		}
		return OutcomeFailed, conv.ID
	}

	if next, changed := statusAfterOperatorReply(conv.Status); changed {
		if _, err := s.store.UpdateConversation(ctx, conv.ID, models.ConversationUpdate{Status: &next}); err != nil {
			s.storeFailure("handle_operator_reply", conv.ID, err)
		}
	}

	conv = s.reload(ctx, conv)
	s.publish(conv, msg)
	return OutcomeStored, conv.ID
}

// storeOperatorAttachment copies an operator attachment into the media store. It
// returns nil when the attachment could not be stored.
func (s *Service) storeOperatorAttachment(ctx context.Context, conv *models.Conversation, ref *telegram.AttachmentRef) *media.Object {
	if s.media == nil {
		s.log.Warn("Media storage not configured, dropping operator attachment",
			zap.String("conversation_id", conv.ID), zap.String("operation", "store_attachment"))
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.AttachmentTimeout)
	defer cancel()

	data, err := s.bridge.FetchAttachment(ctx, ref, s.opts.Policy.MaxBytes)
	if err != nil {
		s.upstreamFailure(conv.ID, "fetch_attachment", err)
		return nil
	}
	contentType, err := s.opts.Policy.Check(data)
	if err != nil {
		s.log.Warn("Operator attachment rejected", zap.String("conversation_id", conv.ID),
			zap.String("operation", "store_attachment"), zap.String("file_name", ref.FileName), zap.Error(err))
		return nil
	}
	obj, err := s.media.Upload(ctx, conv.ID, data, ref.FileName, contentType)
	if err != nil {
		s.upstreamFailure(conv.ID, "store_attachment", err)
		return nil
	}
	return obj
}

// discardAttachment removes an object no message points to.
func (s *Service) discardAttachment(ctx context.Context, conversationID string, obj *media.Object) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.AttachmentTimeout)
	defer cancel()
	if err := s.media.Delete(ctx, obj.StoragePath); err != nil {
		s.log.Warn("Failed to delete orphaned attachment", zap.String("conversation_id", conversationID),
			zap.String("operation", "discard_attachment"), zap.String("storage_path", obj.StoragePath), zap.Error(err))
		return
	}
	s.log.Warn("Deleted attachment of unstored operator message", zap.String("conversation_id", conversationID),
		zap.String("operation", "discard_attachment"), zap.String("storage_path", obj.StoragePath))
}
