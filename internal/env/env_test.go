package env_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/reachenv/internal/config"
	"github.com/san-kum/reachenv/internal/dynamo"
	"github.com/san-kum/reachenv/internal/env"
	"github.com/san-kum/reachenv/internal/physics"
	"github.com/san-kum/reachenv/internal/robot"
	"github.com/san-kum/reachenv/internal/sim"
	"github.com/san-kum/reachenv/internal/spatial"
	"github.com/san-kum/reachenv/internal/task"
	"gonum.org/v1/gonum/mat"
)

var neutralEE = []float64{0.3367, 0, 0.2707}

func newEnv(modify func(*config.Config)) *env.Env {
	cfg := config.DefaultConfig()
	if modify != nil {
		modify(cfg)
	}
	e, err := env.New(*cfg)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(e.Close)
	return e
}

func zeros(n int) []float64 { return make([]float64, n) }

var _ = Describe("Env", func() {
	Describe("New", func() {
		It("builds observation and action spaces", func() {
			e := newEnv(nil)
			space := e.ObservationSpace()
			Expect(space.Keys()).To(Equal([]string{"achieved_goal", "desired_goal", "obstacle_dist", "robot_pos"}))

			dims := map[string]int{"robot_pos": 7, "obstacle_dist": 1, "achieved_goal": 3, "desired_goal": 3}
			for key, dim := range dims {
				box, err := space.Get(key)
				Expect(err).NotTo(HaveOccurred())
				Expect(box.Dim()).To(Equal(dim), key)
				Expect(box.Low[0]).To(Equal(-10.0))
				Expect(box.High[0]).To(Equal(10.0))
			}
			Expect(e.ActionSpace().Dim()).To(Equal(7))
		})

		It("uses 7-d goals for the orientation task and 3-d actions for ee control", func() {
			e := newEnv(func(c *config.Config) {
				c.Task.OrientationTask = true
				c.ControlType = "ee"
			})
			box, err := e.ObservationSpace().Get("desired_goal")
			Expect(err).NotTo(HaveOccurred())
			Expect(box.Dim()).To(Equal(7))
			Expect(e.ActionSpace().Dim()).To(Equal(3))
		})

		It("rejects unknown render modes", func() {
			cfg := config.DefaultConfig()
			cfg.RenderMode = "ansi"
			_, err := env.New(*cfg)
			Expect(err).To(MatchError(sim.ErrInvalidRenderMode))
		})

		It("rejects collision margins above 0.022", func() {
			cfg := config.DefaultConfig()
			cfg.CollisionMargin = 0.03
			_, err := env.New(*cfg)
			Expect(err).To(MatchError(dynamo.ErrParameterBounds))
		})

		It("places the render camera", func() {
			e := newEnv(nil)
			cam := e.Sim().Camera()
			Expect(cam.Target.Z).To(Equal(0.72))
			Expect(cam.Distance).To(Equal(2.0))
			Expect(cam.Yaw).To(Equal(45.0))
			Expect(cam.Pitch).To(Equal(-30.0))
			Expect(e.Sim().Engine().RenderingEnabled()).To(BeTrue())
		})
	})

	Describe("Reset", func() {
		It("is reproducible for a fixed seed", func() {
			e := newEnv(nil)
			seed := uint64(7)
			first, _, err := e.Reset(env.ResetOptions{Seed: &seed})
			Expect(err).NotTo(HaveOccurred())
			_, _, _ = e.Reset(env.ResetOptions{})
			second, _, err := e.Reset(env.ResetOptions{Seed: &seed})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.DesiredGoal).To(Equal(first.DesiredGoal))
		})

		It("restores the neutral pose", func() {
			e := newEnv(nil)
			for i := 0; i < 3; i++ {
				_, _, _, _, _, err := e.Step([]float64{1, 1, 1, 1, 1, 1, 1})
				Expect(err).NotTo(HaveOccurred())
			}
			obs, info, err := e.Reset(env.ResetOptions{})
			Expect(err).NotTo(HaveOccurred())
			for i, q := range obs.RobotPos {
				Expect(q).To(BeNumerically("~", robot.NeutralJointValues[i], 1e-6))
			}
			Expect(info.IsSuccess).To(BeFalse())
			Expect(e.ElapsedSteps()).To(Equal(0))
		})

		It("applies a goal override", func() {
			e := newEnv(nil)
			obs, info, err := e.Reset(env.ResetOptions{Goal: neutralEE})
			Expect(err).NotTo(HaveOccurred())
			Expect(obs.DesiredGoal).To(Equal(env.Float32s(neutralEE)))
			Expect(info.IsSuccess).To(BeTrue())
		})

		It("returns observations inside the observation space", func() {
			e := newEnv(nil)
			obs, _, err := e.Reset(env.ResetOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Validate(obs)).To(Succeed())
			Expect(obs.ObstacleDist).To(HaveLen(1))
			Expect(float64(obs.ObstacleDist[0])).To(BeNumerically("~", 0.1822, 1e-3))
		})
	})

	Describe("Step", func() {
		It("keeps the arm still under a zero action and rewards negative distance", func() {
			e := newEnv(nil)
			obs0, _, err := e.Reset(env.ResetOptions{Goal: []float64{0.6, 0.1, 0.2}})
			Expect(err).NotTo(HaveOccurred())

			Expect(e.LastObservation()).To(Equal(obs0))
			obs, reward, terminated, truncated, info, err := e.Step(zeros(7))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.LastObservation()).To(Equal(obs))
			Expect(obs.RobotPos).To(Equal(obs0.RobotPos))
			Expect(terminated).To(BeFalse())
			Expect(truncated).To(BeFalse())
			Expect(info).To(Equal(env.Info{}))

			d, err := e.Distance()
			Expect(err).NotTo(HaveOccurred())
			Expect(reward).To(BeNumerically("~", -d, 1e-9))
			Expect(e.ElapsedSteps()).To(Equal(1))
		})

		It("terminates with success when the goal is reached", func() {
			e := newEnv(nil)
			_, _, err := e.Reset(env.ResetOptions{Goal: neutralEE})
			Expect(err).NotTo(HaveOccurred())
			_, reward, terminated, _, info, err := e.Step(zeros(7))
			Expect(err).NotTo(HaveOccurred())
			Expect(terminated).To(BeTrue())
			Expect(info).To(Equal(env.Info{IsSuccess: true}))
			Expect(reward).To(BeNumerically(">", -0.01))
		})

		It("terminates on collision and applies the penalty", func() {
			e := newEnv(nil)
			_, _, err := e.Reset(env.ResetOptions{Goal: neutralEE})
			Expect(err).NotTo(HaveOccurred())
			ee, err := e.Robot().EEPosition()
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Sim().SetBasePose(sim.ObstacleBody, ee, []float64{0, 0, 0})).To(Succeed())

			_, reward, terminated, _, info, err := e.Step(zeros(7))
			Expect(err).NotTo(HaveOccurred())
			Expect(terminated).To(BeTrue())
			Expect(info).To(Equal(env.Info{IsSuccess: false, IsCollision: true}))
			Expect(reward).To(BeNumerically("<", -10))
		})

		It("moves the joints in the commanded direction", func() {
			e := newEnv(nil)
			obs0, _, err := e.Reset(env.ResetOptions{})
			Expect(err).NotTo(HaveOccurred())
			obs, _, _, _, _, err := e.Step([]float64{1, 0, 0, 0, 0, 0, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(obs.RobotPos[0]).To(BeNumerically(">", obs0.RobotPos[0]))
			Expect(float64(obs.RobotPos[0])).To(BeNumerically("<=", robot.JointStep+1e-6))
		})

		It("truncates only when a step limit is configured", func() {
			e := newEnv(func(c *config.Config) { c.MaxEpisodeSteps = 3 })
			_, _, err := e.Reset(env.ResetOptions{Goal: []float64{0.6, 0.1, 0.2}})
			Expect(err).NotTo(HaveOccurred())
			for i := 1; i <= 3; i++ {
				_, _, _, truncated, _, err := e.Step(zeros(7))
				Expect(err).NotTo(HaveOccurred())
				Expect(truncated).To(Equal(i == 3))
			}

			unlimited := newEnv(nil)
			_, _, _ = unlimited.Reset(env.ResetOptions{Goal: []float64{0.6, 0.1, 0.2}})
			for i := 0; i < 5; i++ {
				_, _, _, truncated, _, err := unlimited.Step(zeros(7))
				Expect(err).NotTo(HaveOccurred())
				Expect(truncated).To(BeFalse())
			}
		})

		It("takes at most two extra simulation steps while the end effector is fast", func() {
			e := newEnv(nil)
			_, _, err := e.Reset(env.ResetOptions{Goal: []float64{0.6, 0.1, 0.2}})
			Expect(err).NotTo(HaveOccurred())
			n := e.Sim().NSubsteps()
			engine := e.Sim().Engine()

			before := engine.Steps()
			_, _, _, _, _, err = e.Step(zeros(7))
			Expect(err).NotTo(HaveOccurred())
			Expect(engine.Steps() - before).To(Equal(n))

			counts := map[int]int{}
			for i := 0; i < 40; i++ {
				action := make([]float64, 7)
				for j := range action {
					action[j] = 1
					if i%2 == 1 {
						action[j] = -1
					}
				}
				before := engine.Steps()
				_, _, _, _, _, err := e.Step(action)
				Expect(err).NotTo(HaveOccurred())
				taken := engine.Steps() - before
				Expect(taken).To(BeNumerically("<=", 3*n))
				Expect(taken % n).To(BeZero())
				counts[taken/n]++
			}
			Expect(counts).To(HaveKey(3))
			Expect(counts).To(HaveKey(1))
		})

		It("rejects actions of the wrong size", func() {
			e := newEnv(nil)
			_, _, _, _, _, err := e.Step(zeros(3))
			Expect(err).To(MatchError(robot.ErrActionShape))
		})

		It("fails after Close", func() {
			e := newEnv(nil)
			Expect(e.Close()).To(Succeed())
			Expect(e.Close()).To(Succeed())
			_, _, _, _, _, err := e.Step(zeros(7))
			Expect(err).To(MatchError(physics.ErrNotConnected))
			_, _, err = e.Reset(env.ResetOptions{})
			Expect(err).To(MatchError(physics.ErrNotConnected))
		})
	})

	Describe("rewards", func() {
		It("matches the batched form", func() {
			e := newEnv(nil)
			achieved := mat.NewDense(2, 3, []float64{0.6, 0.3, 0.15, 0.6, 0, 0.15})
			desired := mat.NewDense(2, 3, []float64{0.6, 0, 0.15, 0.6, 0, 0.15})
			batch, err := e.ComputeRewards(achieved, desired, nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(batch[0]).To(BeNumerically("~", -0.3, 1e-12))
			Expect(batch[1]).To(BeNumerically("~", 0, 1e-12))
			Expect(e.ComputeReward(achieved.RawRowView(0), desired.RawRowView(0), env.Info{}, math.Inf(1))).To(Equal(batch[0]))
		})

		It("rejects mismatched goal shapes", func() {
			e := newEnv(nil)
			_, err := e.ComputeReward([]float64{0.6, 0}, []float64{0.6, 0}, env.Info{}, 1)
			Expect(err).To(MatchError(task.ErrGoalShape))
			_, err = e.ComputeReward([]float64{0.6, 0, 0.1}, []float64{0.6, 0, 0.1, 0, 0, 0, 1}, env.Info{}, 1)
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))

			achieved := mat.NewDense(2, 3, nil)
			_, err = e.ComputeRewards(achieved, mat.NewDense(2, 7, nil), nil, nil)
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
			_, err = e.ComputeRewards(achieved, mat.NewDense(2, 3, nil), []env.Info{{}}, nil)
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
			_, err = e.ComputeRewards(achieved, mat.NewDense(2, 3, nil), nil, []float64{1})
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
			_, err = e.ComputeRewards(mat.NewDense(1, 2, nil), mat.NewDense(1, 2, nil), nil, nil)
			Expect(err).To(MatchError(task.ErrGoalShape))
		})

		It("adds orientation error for the orientation task", func() {
			e := newEnv(func(c *config.Config) { c.Task.OrientationTask = true })
			down := spatial.ToXYZW(spatial.FromEuler(math.Pi, 0, 0))
			goal := append([]float64{0.6, 0, 0.15}, down...)
			Expect(e.ComputeReward(goal, goal, env.Info{}, 1)).To(BeNumerically("~", 0, 1e-6))
		})
	})

	Describe("Render", func() {
		It("returns a frame in rgb_array mode", func() {
			e := newEnv(nil)
			img, err := e.Render()
			Expect(err).NotTo(HaveOccurred())
			Expect(img).NotTo(BeNil())
			Expect(img.Bounds().Dx()).To(Equal(700))
			Expect(img.Bounds().Dy()).To(Equal(400))
		})

		It("returns nothing in human mode", func() {
			e := newEnv(func(c *config.Config) { c.RenderMode = "human" })
			img, err := e.Render()
			Expect(err).NotTo(HaveOccurred())
			Expect(img).To(BeNil())
		})
	})
})
