package filtergraph

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"duet/internal/scene"
)

// Media is a resolved asset path. Still marks a single image that must be
// looped into a video stream.
type Media struct {
	Path  string
	Still bool
}

// PoseSet maps pose names to character image paths.
type PoseSet map[string]string

// Lookup returns the image for pose, falling back to neutral, standing, and
// finally the alphabetically first pose.
func (p PoseSet) Lookup(pose string) (string, bool) {
	if len(p) == 0 {
		return "", false
	}
	for _, name := range []string{strings.ToLower(strings.TrimSpace(pose)), "neutral", "standing"} {
		if name == "" {
			continue
		}
		if path, ok := p[name]; ok {
			return path, true
		}
	}
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	slices.Sort(names)
	return p[names[0]], true
}

// Assets are the resolved file paths a render composes.
type Assets struct {
	Background       Media
	Voiceover        string
	VoiceoverSeconds float64
	// Music is optional and loops under the voiceover.
	Music string
	// Poses is optional. Roles without a pose set render captions only.
	Poses map[scene.Role]PoseSet
}

// Compiler turns timed scenes into a Command. The canvas and encoding are
// validated once by New; Compile performs no I/O.
type Compiler struct {
	canvas   Canvas
	encoding Encoding
}

// New validates canvas and encoding and returns a compiler bound to them.
func New(canvas Canvas, encoding Encoding) (*Compiler, error) {
	if err := encoding.Validate(); err != nil {
		return nil, fmt.Errorf("encoding: %w", err)
	}
	if err := canvas.Validate(encoding.PixelFormat); err != nil {
		return nil, fmt.Errorf("canvas: %w", err)
	}
	return &Compiler{canvas: canvas, encoding: encoding}, nil
}

// Canvas returns the compiler's canvas.
func (c *Compiler) Canvas() Canvas {
	return c.canvas
}

// Compile builds the composition command for scenes, which must all carry
// timings in non-decreasing start order.
func (c *Compiler) Compile(scenes []scene.VideoScene, assets Assets) (*Command, error) {
	if strings.TrimSpace(assets.Background.Path) == "" {
		return nil, compileErr(0, "background path is empty")
	}
	if strings.TrimSpace(assets.Voiceover) == "" {
		return nil, compileErr(0, "voiceover path is empty")
	}
	end, err := checkScenes(scenes)
	if err != nil {
		return nil, err
	}

	cv := c.canvas
	cmd := &Command{
		Encoding:        c.encoding,
		FPS:             cv.FPS,
		VideoLabel:      "outv",
		DurationSeconds: math.Max(end, assets.VoiceoverSeconds),
	}
	cmd.Inputs = append(cmd.Inputs,
		Input{Path: assets.Background.Path, LoopImage: assets.Background.Still, LoopStream: !assets.Background.Still, FrameRate: cv.FPS},
		Input{Path: assets.Voiceover},
	)
	cmd.Stages = append(cmd.Stages, Stage{
		Kind:   StageBackground,
		Inputs: []string{"0:v"},
		Filters: []string{
			fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", cv.Width, cv.Height),
			fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", cv.Width, cv.Height),
			"setsar=1",
		},
		Outputs: []string{"bg"},
	})

	poses := c.addPoseStages(cmd, scenes, assets.Poses)

	prev := "bg"
	for k, role := range poses.idleRoles {
		out := "idle" + strconv.Itoa(k)
		cmd.Stages = append(cmd.Stages, c.idleStage(role, scenes, prev, poses.idle[role], out))
		prev = out
	}
	for i, sc := range scenes {
		out := "v" + strconv.Itoa(i)
		if i == len(scenes)-1 {
			out = cmd.VideoLabel
		}
		cmd.Stages = append(cmd.Stages, c.overlayStage(sc, prev, poses.scenes[i], out))
		prev = out
	}
	if len(scenes) == 0 {
		cmd.Stages = append(cmd.Stages, Stage{
			Kind:    StagePassthrough,
			Inputs:  []string{prev},
			Filters: []string{"null"},
			Outputs: []string{cmd.VideoLabel},
		})
	}

	if strings.TrimSpace(assets.Music) == "" {
		cmd.AudioStream = "1:a"
		return cmd, nil
	}
	musicIndex := len(cmd.Inputs)
	cmd.Inputs = append(cmd.Inputs, Input{Path: assets.Music, LoopStream: true})
	cmd.AudioLabel = "outa"
	cmd.Stages = append(cmd.Stages, Stage{
		Kind:   StageAudio,
		Inputs: []string{"1:a", strconv.Itoa(musicIndex) + ":a"},
		Filters: []string{fmt.Sprintf(
			"amix=inputs=2:duration=first:dropout_transition=0:weights='1 %s':normalize=0",
			strconv.FormatFloat(c.encoding.MusicVolume, 'f', -1, 64),
		)},
		Outputs: []string{cmd.AudioLabel},
	})
	return cmd, nil
}

func checkScenes(scenes []scene.VideoScene) (float64, error) {
	end := 0.0
	prevStart := math.Inf(-1)
	for i, sc := range scenes {
		number := sc.Number
		if number == 0 {
			number = i + 1
		}
		if !sc.Timed() {
			return 0, compileErr(number, "missing start time or duration")
		}
		start, duration := *sc.StartSeconds, *sc.DurationSeconds
		if start < 0 || duration < 0 || math.IsNaN(start) || math.IsNaN(duration) {
			return 0, compileErr(number, "invalid timing start=%v duration=%v", start, duration)
		}
		if start < prevStart {
			return 0, compileErr(number, "starts at %s before the previous scene", formatSeconds(start))
		}
		if !sc.Role.Valid() {
			return 0, compileErr(number, "unknown speaker role %q", sc.Role)
		}
		prevStart = start
		end = math.Max(end, start+duration)
	}
	return end, nil
}

// poseLabels holds the split pose streams each overlay consumes. idleRoles
// lists the roles that stay on stage, in canonical order.
type poseLabels struct {
	idleRoles []scene.Role
	idle      map[scene.Role]string
	scenes    []string
}

// addPoseStages adds one scaled input per distinct pose image, split into as
// many copies as overlays use it. Every role with a pose set gets an idle
// copy of its neutral pose so it stays visible while the other role speaks.
func (c *Compiler) addPoseStages(cmd *Command, scenes []scene.VideoScene, poses map[scene.Role]PoseSet) poseLabels {
	labels := poseLabels{idle: map[scene.Role]string{}, scenes: make([]string, len(scenes))}
	if c.canvas.CharacterHeight == 0 || len(poses) == 0 {
		return labels
	}

	var order []string
	users := map[string][]*string{}
	use := func(path string, dst *string) {
		if _, seen := users[path]; !seen {
			order = append(order, path)
		}
		users[path] = append(users[path], dst)
	}
	idle := make([]string, len(scene.Roles))
	for r, role := range scene.Roles {
		path, ok := poses[role].Lookup("neutral")
		if !ok {
			continue
		}
		labels.idleRoles = append(labels.idleRoles, role)
		use(path, &idle[r])
	}
	for i, sc := range scenes {
		if path, ok := poses[sc.Role].Lookup(sc.Pose); ok {
			use(path, &labels.scenes[i])
		}
	}

	for p, path := range order {
		idx := len(cmd.Inputs)
		cmd.Inputs = append(cmd.Inputs, Input{Path: path, LoopImage: true, FrameRate: c.canvas.FPS})
		stage := Stage{
			Kind:    StagePose,
			Inputs:  []string{strconv.Itoa(idx) + ":v"},
			Filters: []string{fmt.Sprintf("scale=-1:%d:flags=lanczos", c.canvas.CharacterHeight), "format=rgba"},
		}
		dsts := users[path]
		if len(dsts) > 1 {
			stage.Filters = append(stage.Filters, "split="+strconv.Itoa(len(dsts)))
		}
		for k, dst := range dsts {
			label := fmt.Sprintf("p%d_%d", p, k)
			stage.Outputs = append(stage.Outputs, label)
			*dst = label
		}
		cmd.Stages = append(cmd.Stages, stage)
	}
	for r, role := range scene.Roles {
		if idle[r] != "" {
			labels.idle[role] = idle[r]
		}
	}
	return labels
}

// idleStage keeps role's neutral pose on screen outside the role's own scene
// windows, where the scene overlay shows its speaking pose instead.
func (c *Compiler) idleStage(role scene.Role, scenes []scene.VideoScene, prev, pose, out string) Stage {
	cv := c.canvas
	var windows []string
	for _, sc := range scenes {
		if sc.Role == role {
			windows = append(windows, sceneWindow(sc))
		}
	}
	filter := fmt.Sprintf("overlay=x=%d:y=%d:format=auto", cv.AnchorX(role == scene.RoleExplainer), c.characterY())
	if len(windows) > 0 {
		filter += ":enable='not(" + strings.Join(windows, "+") + ")'"
	}
	return Stage{Kind: StageIdle, Inputs: []string{prev, pose}, Filters: []string{filter}, Outputs: []string{out}}
}

func (c *Compiler) characterY() int {
	return max(c.canvas.Height-c.canvas.CharacterHeight-c.canvas.CharacterBottom, 0)
}

func sceneWindow(sc scene.VideoScene) string {
	start := *sc.StartSeconds
	return fmt.Sprintf("gte(t,%s)*lt(t,%s)", formatSeconds(start), formatSeconds(start+*sc.DurationSeconds))
}

func (c *Compiler) overlayStage(sc scene.VideoScene, prev, pose, out string) Stage {
	cv := c.canvas
	start := *sc.StartSeconds
	enable := sceneWindow(sc)
	x := cv.AnchorX(sc.Role == scene.RoleExplainer)

	stage := Stage{Kind: StageOverlay, Scene: sc.Number, Inputs: []string{prev}, Outputs: []string{out}}
	if pose != "" {
		stage.Inputs = append(stage.Inputs, pose)
		stage.Filters = append(stage.Filters, fmt.Sprintf("overlay=x=%d:y=%d:format=auto:enable='%s'", x, c.characterY(), enable))
	}

	text := WrapText(sc.Text, cv.WrapColumns)
	if text != "" {
		alpha := ""
		if cv.FadeSeconds > 0 {
			fade := strconv.FormatFloat(cv.FadeSeconds, 'f', -1, 64)
			s := formatSeconds(start)
			alpha = fmt.Sprintf("if(lt(t-%s,%s),(t-%s)/%s,1)", s, fade, s, fade)
		}
		if name := strings.TrimSpace(sc.SpeakerName); name != "" {
			stage.Filters = append(stage.Filters, c.drawtext(name+":", cv.LabelFontSize, "yellow", x, cv.LabelBottom, enable, alpha))
		}
		stage.Filters = append(stage.Filters, c.drawtext(text, cv.CaptionFontSize, "white", x, cv.CaptionBottom, enable, alpha))
	}

	if len(stage.Filters) == 0 {
		stage.Filters = []string{"null"}
	}
	return stage
}

func (c *Compiler) drawtext(text string, size int, color string, x, bottom int, enable, alpha string) string {
	opts := []string{"drawtext=text='" + EscapeText(text) + "'"}
	if c.canvas.FontFile != "" {
		opts = append(opts, "fontfile='"+EscapeText(c.canvas.FontFile)+"'")
	}
	opts = append(opts,
		"fontsize="+strconv.Itoa(size),
		"fontcolor="+color,
		"x="+strconv.Itoa(x),
		"y=h-"+strconv.Itoa(bottom),
		"enable='"+enable+"'",
	)
	if alpha != "" {
		opts = append(opts, "alpha='"+alpha+"'")
	}
	return strings.Join(opts, ":")
}
