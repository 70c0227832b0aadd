package bridge

import (
	"go.viam.com/lcmbridge/config"
	"go.viam.com/lcmbridge/ignmsgs"
	"go.viam.com/lcmbridge/lcmtypes"
)

func init() {
	RegisterTranslation(config.KindViewerLoadRobot, func(deps Dependencies) (Runner, error) {
		return NewRepeater(deps, ignmsgs.ModelType, lcmtypes.DecodeViewerLoadRobot, deps.Translator.Model), nil
	})
	RegisterTranslation(config.KindViewerDraw, func(deps Dependencies) (Runner, error) {
		return NewRepeater(deps, ignmsgs.PoseVType, lcmtypes.DecodeViewerDraw, deps.Translator.Draw), nil
	})
}
