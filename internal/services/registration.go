package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tripwatch-bot/internal/geo"
	"tripwatch-bot/internal/models"
	"tripwatch-bot/internal/repository"
)

// dateFormat is the fixed external format for trip dates.
const dateFormat = "02.01.2006"

var (
	frequencyChoices   = []string{"1", "2", "3"}
	slotChoices        = []string{string(models.SlotMorning), string(models.SlotMidday), string(models.SlotEvening)}
	languageChoices    = []string{"en", "ru"}
	addAnotherChoices  = []string{"add another country", "finish"}
	promptName         = "What is your name?"
	promptLanguage     = "Which language do you prefer?"
	promptCountry      = "Which country are you traveling to?"
	promptStartDate    = "Trip start date? (DD.MM.YYYY)"
	promptEndDate      = "Trip end date? (DD.MM.YYYY)"
	promptFrequency    = "How many check-ins per day? (1, 2 or 3)"
	promptCheckinTime  = "Which time of day? (morning 08:00, midday 14:00, evening 20:00)"
	promptAddAnother   = "Add another country or finish?"
	replyCommitFailed  = "Something went wrong saving your trip. Please choose again to retry."
	replyNoActiveTrips = "You have no trips to edit. Use /newtrip first."
)

// Reply is what the state machine wants said back to the chat. Choices are
// rendered as inline keyboard buttons; their values come back as input.
type Reply struct {
	Text    string
	Choices []string
}

// RegistrationService drives the multi-step trip creation and edit flows.
type RegistrationService struct {
	sessions   *SessionStore
	employees  repository.EmployeeRepository
	trips      repository.TripRepository
	registrar  repository.Registrar
	resolver   geo.Resolver
	dispatcher *Dispatcher
	dayMode    models.DayMode
	now        func() time.Time
}

func NewRegistrationService(
	sessions *SessionStore,
	employees repository.EmployeeRepository,
	trips repository.TripRepository,
	registrar repository.Registrar,
	resolver geo.Resolver,
	dispatcher *Dispatcher,
	dayMode models.DayMode,
) *RegistrationService {
	return &RegistrationService{
		sessions:   sessions,
		employees:  employees,
		trips:      trips,
		registrar:  registrar,
		resolver:   resolver,
		dispatcher: dispatcher,
		dayMode:    dayMode,
		now:        time.Now,
	}
}

// StartRegistration begins the full first-time flow.
func (s *RegistrationService) StartRegistration(chatID int64, handle string) *Reply {
	sess := s.sessions.Begin(chatID)
	sess.Handle = handle
	sess.Step = StepName
	return &Reply{Text: promptName}
}

// StartNewTrip begins the trip-only flow for an already registered employee.
// Completing it un-archives the employee.
func (s *RegistrationService) StartNewTrip(ctx context.Context, chatID int64) (*Reply, error) {
	employee, err := s.employees.GetByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &Reply{Text: "You are not registered yet. Use /register."}, nil
		}
		return nil, err
	}

	sess := s.sessions.Begin(chatID)
	sess.Name = employee.DisplayName
	sess.Language = employee.Language
	sess.Handle = employee.Handle
	sess.Step = StepCountry
	return &Reply{Text: promptCountry}, nil
}

// StartEdit begins an edit flow for one field of the employee's current
// (or, failing that, most recent) trip. field is one of country, dates,
// frequency.
func (s *RegistrationService) StartEdit(ctx context.Context, chatID int64, field string) (*Reply, error) {
	employee, err := s.employees.GetByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &Reply{Text: "You are not registered yet. Use /register."}, nil
		}
		return nil, err
	}

	trips, err := s.trips.ListByEmployee(ctx, employee.ID)
	if err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		return &Reply{Text: replyNoActiveTrips}, nil
	}
	trip := models.CurrentTrip(trips, s.now(), s.dayMode)
	if trip == nil {
		trip = trips[0]
	}

	sess := s.sessions.Begin(chatID)
	sess.EditTripID = trip.ID
	switch field {
	case "country":
		sess.Step = StepEditCountry
		return &Reply{Text: promptCountry}, nil
	case "dates":
		sess.Step = StepEditStartDate
		return &Reply{Text: promptStartDate}, nil
	case "frequency":
		sess.Step = StepEditFrequency
		return &Reply{Text: promptFrequency, Choices: frequencyChoices}, nil
	default:
		s.sessions.End(chatID)
		return &Reply{Text: "Unknown field. Use /edit again."}, nil
	}
}

// HandleInput advances the state machine with one text or button input.
// It returns nil when no flow is in progress for the chat.
func (s *RegistrationService) HandleInput(ctx context.Context, chatID int64, input string) (*Reply, error) {
	sess := s.sessions.Get(chatID)
	if sess == nil || sess.Step == StepIdle || sess.Step == StepCheckinStatus {
		return nil, nil
	}
	input = strings.TrimSpace(input)

	switch sess.Step {
	case StepName:
		if input == "" {
			return &Reply{Text: "Name cannot be empty. " + promptName}, nil
		}
		sess.Name = input
		sess.Step = StepLanguage
		return &Reply{Text: promptLanguage, Choices: languageChoices}, nil

	case StepLanguage:
		if !contains(languageChoices, input) {
			return &Reply{Text: promptLanguage, Choices: languageChoices}, nil
		}
		sess.Language = input
		sess.Step = StepCountry
		return &Reply{Text: promptCountry}, nil

	case StepCountry:
		if input == "" {
			return &Reply{Text: "Country cannot be empty. " + promptCountry}, nil
		}
		sess.Draft = models.Trip{Country: input, Timezone: s.resolver.ZoneByCountry(ctx, input)}
		sess.Step = StepStartDate
		return &Reply{Text: promptStartDate}, nil

	case StepStartDate:
		start, err := time.Parse(dateFormat, input)
		if err != nil {
			return &Reply{Text: "That is not a valid date. " + promptStartDate}, nil
		}
		sess.Draft.StartDate = start
		sess.Step = StepEndDate
		return &Reply{Text: promptEndDate}, nil

	case StepEndDate:
		end, err := time.Parse(dateFormat, input)
		if err != nil {
			return &Reply{Text: "That is not a valid date. " + promptEndDate}, nil
		}
		if end.Before(sess.Draft.StartDate) {
			return &Reply{Text: "End date must not be before the start date. " + promptEndDate}, nil
		}
		sess.Draft.EndDate = end
		sess.Step = StepFrequency
		return &Reply{Text: promptFrequency, Choices: frequencyChoices}, nil

	case StepFrequency:
		freq, ok := parseFrequency(input)
		if !ok {
			return &Reply{Text: promptFrequency, Choices: frequencyChoices}, nil
		}
		sess.Draft.Frequency = freq
		if freq == 1 {
			sess.Step = StepCheckinTime
			return &Reply{Text: promptCheckinTime, Choices: slotChoices}, nil
		}
		sess.Draft.CheckinTime = ""
		return s.finishDraft(sess), nil

	case StepCheckinTime:
		if !contains(slotChoices, input) {
			return &Reply{Text: promptCheckinTime, Choices: slotChoices}, nil
		}
		sess.Draft.CheckinTime = models.SlotTime(input)
		return s.finishDraft(sess), nil

	case StepAddCountry:
		switch input {
		case addAnotherChoices[0]:
			sess.Step = StepCountry
			return &Reply{Text: promptCountry}, nil
		case addAnotherChoices[1]:
			return s.commit(ctx, sess), nil
		default:
			return &Reply{Text: promptAddAnother, Choices: addAnotherChoices}, nil
		}

	case StepEditCountry:
		if input == "" {
			return &Reply{Text: "Country cannot be empty. " + promptCountry}, nil
		}
		zone := s.resolver.ZoneByCountry(ctx, input)
		if err := s.trips.UpdateCountry(ctx, sess.EditTripID, input, zone); err != nil {
			log.Printf("Failed to update trip %s country: %v", sess.EditTripID, err)
			return &Reply{Text: replyCommitFailed}, nil
		}
		return s.finishEdit(ctx, sess, fmt.Sprintf("country set to %s (%s)", input, zone)), nil

	case StepEditStartDate:
		start, err := time.Parse(dateFormat, input)
		if err != nil {
			return &Reply{Text: "That is not a valid date. " + promptStartDate}, nil
		}
		sess.EditStart = start
		sess.Step = StepEditEndDate
		return &Reply{Text: promptEndDate}, nil

	case StepEditEndDate:
		end, err := time.Parse(dateFormat, input)
		if err != nil {
			return &Reply{Text: "That is not a valid date. " + promptEndDate}, nil
		}
		if end.Before(sess.EditStart) {
			return &Reply{Text: "End date must not be before the start date. " + promptEndDate}, nil
		}
		if err := s.trips.UpdateDates(ctx, sess.EditTripID, sess.EditStart, end); err != nil {
			log.Printf("Failed to update trip %s dates: %v", sess.EditTripID, err)
			return &Reply{Text: replyCommitFailed}, nil
		}
		return s.finishEdit(ctx, sess, fmt.Sprintf("dates set to %s - %s",
			sess.EditStart.Format(dateFormat), end.Format(dateFormat))), nil

	case StepEditFrequency:
		freq, ok := parseFrequency(input)
		if !ok {
			return &Reply{Text: promptFrequency, Choices: frequencyChoices}, nil
		}
		if freq == 1 {
			sess.Draft.Frequency = 1
			sess.Step = StepEditCheckinTime
			return &Reply{Text: promptCheckinTime, Choices: slotChoices}, nil
		}
		if err := s.trips.UpdateCadence(ctx, sess.EditTripID, freq, ""); err != nil {
			log.Printf("Failed to update trip %s cadence: %v", sess.EditTripID, err)
			return &Reply{Text: replyCommitFailed}, nil
		}
		return s.finishEdit(ctx, sess, fmt.Sprintf("%d check-ins per day", freq)), nil

	case StepEditCheckinTime:
		if !contains(slotChoices, input) {
			return &Reply{Text: promptCheckinTime, Choices: slotChoices}, nil
		}
		if err := s.trips.UpdateCadence(ctx, sess.EditTripID, 1, models.SlotTime(input)); err != nil {
			log.Printf("Failed to update trip %s cadence: %v", sess.EditTripID, err)
			return &Reply{Text: replyCommitFailed}, nil
		}
		return s.finishEdit(ctx, sess, fmt.Sprintf("one %s check-in per day", input)), nil
	}

	return nil, nil
}

// finishDraft appends the collected draft and asks whether to add another.
func (s *RegistrationService) finishDraft(sess *Session) *Reply {
	draft := sess.Draft
	sess.Drafts = append(sess.Drafts, &draft)
	sess.Draft = models.Trip{}
	sess.Step = StepAddCountry
	return &Reply{Text: promptAddAnother, Choices: addAnotherChoices}
}

// commit persists the employee and all drafted trips. On failure the session
// stays at StepAddCountry so choosing "finish" again retries the same commit.
func (s *RegistrationService) commit(ctx context.Context, sess *Session) *Reply {
	employee := &models.Employee{
		ChatID:      sess.ChatID,
		DisplayName: sess.Name,
		Handle:      sess.Handle,
		Language:    sess.Language,
	}
	if err := s.registrar.CommitRegistration(ctx, employee, sess.Drafts); err != nil {
		log.Printf("Registration commit failed for chat %d: %v", sess.ChatID, err)
		return &Reply{Text: replyCommitFailed, Choices: addAnotherChoices}
	}

	trips := sess.Drafts
	s.sessions.End(sess.ChatID)
	s.dispatcher.RegistrationConfirmed(employee, trips)
	return &Reply{Text: "All set. You will get reminders before each check-in slot."}
}

func (s *RegistrationService) finishEdit(ctx context.Context, sess *Session, change string) *Reply {
	employee, err := s.employees.GetByChatID(ctx, sess.ChatID)
	s.sessions.End(sess.ChatID)
	if err == nil {
		if trip, terr := s.trips.GetByID(ctx, sess.EditTripID); terr == nil {
			s.dispatcher.TripUpdated(employee, trip, change)
		}
	}
	return &Reply{Text: "Trip updated: " + change}
}

func parseFrequency(input string) (int, bool) {
	switch input {
	case "1":
		return 1, true
	case "2":
		return 2, true
	case "3":
		return 3, true
	}
	return 0, false
}

func contains(choices []string, v string) bool {
	for _, c := range choices {
		if c == v {
			return true
		}
	}
	return false
}
