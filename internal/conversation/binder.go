package conversation

import (
	"go.uber.org/zap"

	"github.com/narekokr/text-guided-audio-split/internal/gateway"
	"github.com/narekokr/text-guided-audio-split/internal/model/chat"
)

// bindToLastAssistant attaches the turn's stems and remix to the last
// assistant message in msgs. Artifacts with no assistant message to
// carry them are dropped: that is a server-contract violation, logged
// rather than allowed to corrupt the log.
func bindToLastAssistant(msgs []chat.Message, stems []gateway.StemFile, remix *gateway.StemFile, logger *zap.Logger) []chat.Message {
	if len(stems) == 0 && remix == nil {
		return msgs
	}

	target := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleAssistant {
			target = i
			break
		}
	}
	if target < 0 {
		logger.Warn("artifacts arrived with no assistant message to bind to",
			zap.Int("stems", len(stems)), zap.Bool("remix", remix != nil))
		return msgs
	}

	for _, s := range stems {
		msgs[target].Artifacts = append(msgs[target].Artifacts, chat.Artifact{
			Kind:    chat.ArtifactStem,
			Label:   s.Name,
			Locator: s.FileURL,
		})
	}
	if remix != nil {
		label := remix.Name
		if label == "" {
			label = "remix"
		}
		msgs[target].Artifacts = append(msgs[target].Artifacts, chat.Artifact{
			Kind:    chat.ArtifactRemix,
			Label:   label,
			Locator: remix.FileURL,
		})
	}
	return msgs
}

// fromHistory converts backend messages into log messages,
// reconstructing artifacts from file entries: each "stem" entry
// becomes a stem artifact named by its stem label, each "remix" entry
// the remix artifact, at most one per message. File entries on user
// messages violate the contract and are dropped.
func fromHistory(msgs []gateway.HistoryMessage, logger *zap.Logger) []chat.Message {
	out := make([]chat.Message, 0, len(msgs))
	for _, m := range msgs {
		msg := chat.Message{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.Timestamp,
		}

		if len(m.Files) > 0 && m.Role != chat.RoleAssistant {
			logger.Warn("file entries on non-assistant message dropped",
				zap.String("role", m.Role), zap.Int("files", len(m.Files)))
		} else {
			msg.Artifacts = artifactsFromFiles(m.Files, logger)
		}

		out = append(out, msg)
	}
	return out
}

func artifactsFromFiles(files []gateway.FileEntry, logger *zap.Logger) []chat.Artifact {
	var artifacts []chat.Artifact
	haveRemix := false
	for _, f := range files {
		switch f.Type {
		case chat.ArtifactStem:
			artifacts = append(artifacts, chat.Artifact{
				Kind:    chat.ArtifactStem,
				Label:   f.Stem,
				Locator: f.FileURL,
			})
		case chat.ArtifactRemix:
			if haveRemix {
				logger.Warn("second remix entry on one message dropped",
					zap.String("locator", f.FileURL))
				continue
			}
			haveRemix = true
			artifacts = append(artifacts, chat.Artifact{
				Kind:    chat.ArtifactRemix,
				Label:   "remix",
				Locator: f.FileURL,
			})
		}
	}
	return artifacts
}
