package store

import (
	"context"

	"github.com/serenoapp/syncstore/internal/models"
)

// builtinCatalog is the small offline-first exercise set available before
// the first successful catalog pull.
func builtinCatalog() []models.ExerciseCatalogItem {
	return []models.ExerciseCatalogItem{
		{
			TitleEN:         "Box breathing",
			TitleES:         "Respiración cuadrada",
			DescriptionEN:   "Slow four-count breathing to settle the nervous system.",
			DescriptionES:   "Respiración lenta en cuatro tiempos para calmar el sistema nervioso.",
			Category:        models.CategoryBreathing,
			Difficulty:      models.DifficultyBeginner,
			DurationMinutes: 5,
			StepsEN: []string{
				"Breathe in through your nose for a count of four.",
				"Hold for four.",
				"Breathe out through your mouth for four.",
				"Hold for four, then repeat.",
			},
			StepsES: []string{
				"Inhala por la nariz contando hasta cuatro.",
				"Mantén el aire cuatro tiempos.",
				"Exhala por la boca contando hasta cuatro.",
				"Mantén cuatro tiempos y repite.",
			},
		},
		{
			TitleEN:         "Body scan",
			TitleES:         "Escaneo corporal",
			DescriptionEN:   "A guided pass of attention from head to toe.",
			DescriptionES:   "Un recorrido guiado de la atención de la cabeza a los pies.",
			Category:        models.CategoryMindfulness,
			Difficulty:      models.DifficultyBeginner,
			DurationMinutes: 10,
			StepsEN: []string{
				"Sit or lie down comfortably and close your eyes.",
				"Bring attention to the top of your head.",
				"Move slowly downward, noticing each area without judging.",
				"Finish at your feet and take three deep breaths.",
			},
			StepsES: []string{
				"Siéntate o recuéstate cómodamente y cierra los ojos.",
				"Lleva la atención a la parte superior de la cabeza.",
				"Desciende lentamente, notando cada zona sin juzgar.",
				"Termina en los pies y respira hondo tres veces.",
			},
		},
		{
			TitleEN:         "Evening reflection",
			TitleES:         "Reflexión nocturna",
			DescriptionEN:   "Three short prompts to close the day.",
			DescriptionES:   "Tres preguntas breves para cerrar el día.",
			Category:        models.CategoryJournaling,
			Difficulty:      models.DifficultyBeginner,
			DurationMinutes: 5,
			StepsEN: []string{
				"Write one thing that went well today.",
				"Write one thing that felt hard.",
				"Write one thing you are looking forward to.",
			},
			StepsES: []string{
				"Escribe algo que salió bien hoy.",
				"Escribe algo que te costó.",
				"Escribe algo que esperas con ganas.",
			},
		},
		{
			TitleEN:         "Mindful walk",
			TitleES:         "Caminata consciente",
			DescriptionEN:   "A short walk with attention on movement and surroundings.",
			DescriptionES:   "Un paseo corto con atención al movimiento y al entorno.",
			Category:        models.CategoryMovement,
			Difficulty:      models.DifficultyIntermediate,
			DurationMinutes: 15,
			StepsEN: []string{
				"Walk at an easy pace, phone away.",
				"Notice the rhythm of your steps and breathing.",
				"Name five things you can see, four you can hear.",
			},
			StepsES: []string{
				"Camina a un ritmo tranquilo, sin el teléfono.",
				"Nota el ritmo de tus pasos y tu respiración.",
				"Nombra cinco cosas que ves y cuatro que oyes.",
			},
		},
	}
}

// seedExerciseCatalog backfills the built-in set once per tenant, only when
// the catalog table is present and empty. Silent: no outbox ops, no
// notifications.
func seedExerciseCatalog(ctx context.Context, st *Store) error {
	n, err := st.Exercises.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return st.Exercises.Backfill(ctx, builtinCatalog())
}
